/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2025 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package reply_test

import (
	"github.com/nabbar/torctl/control/reply"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parser", func() {
	var p *reply.Parser

	BeforeEach(func() {
		p = reply.New()
	})

	Context("single-line reply", func() {
		It("completes a Group immediately on a space separator", func() {
			res, err := p.Feed("250 OK")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Event).To(BeNil())
			Expect(res.Group).ToNot(BeNil())
			Expect(res.Group.Status).To(Equal(250))
			Expect(res.Group.OK()).To(BeTrue())
			Expect(res.Group.Final().Message).To(Equal("OK"))
		})
	})

	Context("multi-line reply", func() {
		It("accumulates dash-separated lines until the space-separated final line", func() {
			res, err := p.Feed("250-first")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).To(BeNil())

			res, err = p.Feed("250-second")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).To(BeNil())

			res, err = p.Feed("250 OK")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).ToNot(BeNil())
			Expect(res.Group.Lines).To(HaveLen(3))
			Expect(res.Group.Final().Message).To(Equal("OK"))
		})
	})

	Context("data-block reply", func() {
		It("dot-unstuffs the body, ends it on a lone dot, and completes on the final line", func() {
			_, err := p.Feed("250+config-text=")
			Expect(err).ToNot(HaveOccurred())

			_, err = p.Feed("Foo 1")
			Expect(err).ToNot(HaveOccurred())

			_, err = p.Feed("..escaped")
			Expect(err).ToNot(HaveOccurred())

			res, err := p.Feed(".")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).To(BeNil())

			res, err = p.Feed("250 OK")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).ToNot(BeNil())

			data := string(res.Group.Lines[0].Data)
			Expect(data).To(ContainSubstring("Foo 1\r\n"))
			Expect(data).To(ContainSubstring(".escaped\r\n"))
		})
	})

	Context("async events", func() {
		It("parses a single-line 650 event keyed by its keyword", func() {
			res, err := p.Feed("650 BOOTSTRAP PROGRESS=10")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).To(BeNil())
			Expect(res.Event).ToNot(BeNil())
			Expect(res.Event.Keyword).To(Equal("BOOTSTRAP"))
			Expect(res.Event.Message).To(Equal("PROGRESS=10"))
		})

		It("bypasses any in-flight Group accumulation", func() {
			_, err := p.Feed("250-partial")
			Expect(err).ToNot(HaveOccurred())

			res, err := p.Feed("650 STATUS_CLIENT NOTICE BOOTSTRAP PROGRESS=50")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Event).ToNot(BeNil())
			Expect(res.Event.Keyword).To(Equal("STATUS_CLIENT"))

			res, err = p.Feed("250 OK")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Group).ToNot(BeNil())
			Expect(res.Group.Lines).To(HaveLen(2))
		})
	})

	Context("malformed input", func() {
		It("rejects a line shorter than the minimum status+sep length", func() {
			_, err := p.Feed("25")
			Expect(err).To(HaveOccurred())
		})

		It("rejects a non-numeric status", func() {
			_, err := p.Feed("25X OK")
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown separator byte", func() {
			_, err := p.Feed("250!OK")
			Expect(err).To(HaveOccurred())
		})
	})
})
