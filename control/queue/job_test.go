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

package queue_test

import (
	"errors"

	"github.com/nabbar/torctl/control/queue"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Job", func() {
	It("starts Queued and moves to Executing then Success, invoking onSuccess once", func() {
		calls := 0
		j := queue.NewJob(func() { calls++ }, nil)
		Expect(j.State()).To(Equal(queue.Queued))

		Expect(j.Start()).To(BeTrue())
		Expect(j.State()).To(Equal(queue.Executing))

		j.Succeed()
		Expect(j.State()).To(Equal(queue.Success))
		Expect(calls).To(Equal(1))
	})

	It("never transitions again once terminal", func() {
		j := queue.NewJob(nil, nil)
		Expect(j.Start()).To(BeTrue())
		j.Succeed()

		Expect(j.Start()).To(BeFalse())
		j.Fail(errors.New("too late"))
		Expect(j.State()).To(Equal(queue.Success))
		Expect(j.Err()).To(BeNil())
	})

	It("allows Cancel only while Queued", func() {
		j := queue.NewJob(nil, nil)
		Expect(j.Cancel(nil)).To(BeTrue())
		Expect(j.State()).To(Equal(queue.Cancelled))

		j2 := queue.NewJob(nil, nil)
		Expect(j2.Start()).To(BeTrue())
		Expect(j2.Cancel(nil)).To(BeFalse())
	})

	It("permits Fail directly from Queued, to support Interrupt semantics", func() {
		failed := make(chan error, 1)
		j := queue.NewJob(nil, func(e error) { failed <- e })

		cause := errors.New("interrupted")
		j.Fail(cause)

		Expect(j.State()).To(Equal(queue.Error))
		Expect(<-failed).To(Equal(cause))
	})
})
