package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bbsgate/internal/config"
)

var _ = Describe("Load", func() {
	var dir string

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reads the telnet listener settings", func() {
		path := write("config.yml", `
listeners:
  telnet:
    enabled: true
    port: 2323
    firstMenu: matrix
    traceConnections: true
    acceptRate: 5
    acceptBurst: 10
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Listeners.Telnet).To(Equal(config.TelnetConfig{
			Enabled:          true,
			Port:             2323,
			FirstMenu:        "matrix",
			TraceConnections: true,
			AcceptRate:       5,
			AcceptBurst:      10,
		}))
	})

	It("applies defaults", func() {
		path := write("config.yml", "debug: true\n")
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MaxNodes).To(Equal(10))
		Expect(cfg.Listeners.SSH.Port).To(Equal(2222))
		Expect(cfg.Metrics.Listen).To(Equal(":9323"))
	})

	It("lets the including file override its includes", func() {
		write("base.yml", `
maxNodes: 4
general:
  boardName: Base
`)
		path := write("config.yml", `
include:
  - base.yml
general:
  boardName: Override
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MaxNodes).To(Equal(4))
		Expect(cfg.General.BoardName).To(Equal("Override"))
		Expect(cfg.LoadedFiles).To(HaveLen(2))
	})

	It("does not loop on circular includes", func() {
		write("a.yml", "include: [b.yml]\nmaxNodes: 3\n")
		write("b.yml", "include: [a.yml]\n")
		cfg, err := config.Load(filepath.Join(dir, "a.yml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.MaxNodes).To(Equal(3))
	})

	It("expands environment variables", func() {
		GinkgoT().Setenv("BBSGATE_TEST_BOARD", "Env Board")
		path := write("config.yml", "general:\n  boardName: ${BBSGATE_TEST_BOARD}\n")
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.General.BoardName).To(Equal("Env Board"))
	})

	It("reports a missing include", func() {
		path := write("config.yml", "include: [missing.yml]\n")
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("missing.yml")))
	})
})
