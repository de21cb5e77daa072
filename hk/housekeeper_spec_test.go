package hk_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cellmesh/cell/hk"
)

var _ = Describe("Housekeeper", func() {
	var h *hk.Housekeeper

	BeforeEach(func() {
		h = hk.New()
		go h.Run()
		h.WaitStarted()
	})

	AfterEach(func() {
		h.Stop()
	})

	It("fires a registered job after its initial delay", func() {
		fired := make(chan struct{}, 1)
		h.Reg("once", func() time.Duration {
			fired <- struct{}{}
			return 0
		}, time.Millisecond)

		Eventually(fired, time.Second).Should(Receive())
	})

	It("reschedules a job at the delay its own Func returns", func() {
		ticks := make(chan struct{}, 4)
		count := 0
		h.Reg("repeat", func() time.Duration {
			count++
			ticks <- struct{}{}
			if count >= 3 {
				return 0
			}
			return time.Millisecond
		}, time.Millisecond)

		for i := 0; i < 3; i++ {
			Eventually(ticks, time.Second).Should(Receive())
		}
	})

	It("drops a job unregistered before it fires", func() {
		fired := make(chan struct{}, 1)
		h.Reg("cancel-me", func() time.Duration {
			fired <- struct{}{}
			return 0
		}, 50*time.Millisecond)
		h.Unreg("cancel-me")

		Consistently(fired, 150*time.Millisecond).ShouldNot(Receive())
	})

	It("replaces an existing job when re-registered under the same name", func() {
		first := make(chan struct{}, 1)
		second := make(chan struct{}, 1)
		h.Reg("dup", func() time.Duration {
			first <- struct{}{}
			return time.Hour
		}, 200*time.Millisecond)
		h.Reg("dup", func() time.Duration {
			second <- struct{}{}
			return 0
		}, time.Millisecond)

		Eventually(second, time.Second).Should(Receive())
		Consistently(first, 250*time.Millisecond).ShouldNot(Receive())
	})
})
