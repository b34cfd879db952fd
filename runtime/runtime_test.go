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

package runtime_test

import (
	"github.com/nabbar/torctl/control"
	"github.com/nabbar/torctl/runtime"
	"github.com/nabbar/torctl/runtime/action"
	"github.com/nabbar/torctl/runtime/state"
	"github.com/nabbar/torctl/torerr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	It("mints a distinct InstanceId per call to NewInstanceId", func() {
		a := runtime.NewInstanceId()
		b := runtime.NewInstanceId()
		Expect(a).ToNot(Equal(b))
	})

	It("fills in a minted InstanceId when New is called with an empty one", func() {
		m := runtime.New("", nil, nil)
		Expect(m.Environment().InstanceId).ToNot(BeEmpty())
	})

	It("reports the Off/NetworkEnabled/0 snapshot before any daemon activity", func() {
		m := runtime.New(runtime.NewInstanceId(), nil, nil)

		snap := m.State()
		Expect(snap.Daemon).To(Equal(state.Off))
		Expect(snap.Network).To(Equal(state.NetworkEnabled))
		Expect(snap.Bootstrap).To(Equal(0))
	})

	It("fails EnqueueCommand with an Internal error when no Connection is established", func() {
		m := runtime.New(runtime.NewInstanceId(), nil, nil)

		failed := make(chan error, 1)
		job := m.EnqueueCommand(control.Command{Verb: control.VerbGetInfo}, nil, func(e error) { failed <- e })

		Expect(job).ToNot(BeNil())
		Eventually(failed).Should(Receive())
	})

	It("fails Subscribe when no Connection is established", func() {
		m := runtime.New(runtime.NewInstanceId(), nil, nil)

		_, err := m.Subscribe("State", nil, func(interface{}) {})
		Expect(err).To(HaveOccurred())
	})

	It("fails every further EnqueueAction/EnqueueCommand with Destroyed after Destroy", func() {
		m := runtime.New(runtime.NewInstanceId(), nil, nil)
		m.Destroy()

		actionFailed := make(chan error, 1)
		m.EnqueueAction(action.StartDaemon, nil, func(e error) { actionFailed <- e })
		Eventually(actionFailed).Should(Receive(WithTransform(func(e error) bool {
			k, ok := torerr.KindOf(e)
			return ok && k == torerr.Destroyed
		}, BeTrue())))

		cmdFailed := make(chan error, 1)
		m.EnqueueCommand(control.Command{Verb: control.VerbGetInfo}, nil, func(e error) { cmdFailed <- e })
		Eventually(cmdFailed).Should(Receive(WithTransform(func(e error) bool {
			k, ok := torerr.KindOf(e)
			return ok && k == torerr.Destroyed
		}, BeTrue())))
	})

	It("tolerates a second Destroy call on an already-destroyed Manager", func() {
		m := runtime.New(runtime.NewInstanceId(), nil, nil)
		m.Destroy()
		Expect(func() { m.Destroy() }).ToNot(Panic())
	})

	It("fails StartDaemon with a Config error when no torconfig.Config was supplied", func() {
		m := runtime.New(runtime.NewInstanceId(), nil, nil)

		failed := make(chan error, 1)
		m.EnqueueAction(action.StartDaemon, nil, func(e error) { failed <- e })

		Eventually(failed).Should(Receive(WithTransform(func(e error) bool {
			k, ok := torerr.KindOf(e)
			return ok && k == torerr.Config
		}, BeTrue())))
	})
})
