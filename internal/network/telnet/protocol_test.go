package telnet_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bbsgate/internal/network/telnet"
)

var _ = Describe("Frame grammar tables", func() {
	DescribeTable("Command.Category",
		func(c telnet.Command, want telnet.Category) {
			Expect(c.Category()).To(Equal(want))
		},
		Entry("DO", telnet.DO, telnet.CategoryDo),
		Entry("DONT", telnet.DONT, telnet.CategoryDont),
		Entry("WILL", telnet.WILL, telnet.CategoryWill),
		Entry("WONT", telnet.WONT, telnet.CategoryWont),
		Entry("SB", telnet.SB, telnet.CategorySub),
		Entry("AYT", telnet.AYT, telnet.CategoryMisc),
		Entry("SE", telnet.SE, telnet.CategoryMisc),
		Entry("unknown", telnet.Command(17), telnet.CategoryMisc),
	)

	DescribeTable("Option.Name",
		func(o telnet.Option, want string) {
			Expect(o.Name()).To(Equal(want))
		},
		Entry("terminal type", telnet.TType, "terminal type"),
		Entry("window size", telnet.NAWS, "window size"),
		Entry("new environment", telnet.NewEnviron, "new environment"),
		Entry("deprecated environment", telnet.NewEnvironOld, "new environment dep"),
		Entry("suppress go ahead", telnet.SGA, "suppress go ahead"),
		Entry("unregistered", telnet.Option(200), "unknown(200)"),
	)

	It("names commands and options symbolically", func() {
		Expect(telnet.AYT.String()).To(Equal("AYT"))
		Expect(telnet.Command(17).String()).To(Equal("Unknown(17)"))
		Expect(telnet.Command(17).Known()).To(BeFalse())
		Expect(telnet.NAWS.String()).To(Equal("WINDOW_SIZE"))
		Expect(telnet.Option(200).Known()).To(BeFalse())
	})
})
