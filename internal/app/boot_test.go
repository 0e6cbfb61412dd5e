package app_test

import (
	"fmt"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bbsgate/internal/app"
)

var _ = Describe("Boot", func() {
	var dir string

	writeConfig := func(name, dataDir string) string {
		path := filepath.Join(dir, name)
		content := fmt.Sprintf("maxNodes: 2\npaths:\n  data: %q\n", filepath.Join(dir, dataDir))
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	AfterEach(func() {
		if app.Store != nil {
			Expect(app.Store.Close()).To(Succeed())
		}
		app.Store = nil
		app.Config = nil
	})

	It("keeps the open store when a reload names the same data path", func() {
		cfg := writeConfig("config.yml", "data")
		Expect(app.Boot(cfg, true)).To(Succeed())
		first := app.Store

		Expect(app.Boot(cfg, true)).To(Succeed())
		Expect(app.Store).To(BeIdenticalTo(first))
		Expect(first.DB.Exec("SELECT 1").Error).NotTo(HaveOccurred())
	})

	It("swaps and closes the store when the data path moves", func() {
		Expect(app.Boot(writeConfig("a.yml", "one"), true)).To(Succeed())
		first := app.Store

		Expect(app.Boot(writeConfig("b.yml", "two"), true)).To(Succeed())
		Expect(app.Store).NotTo(BeIdenticalTo(first))
		Expect(app.Store.Path).To(Equal(filepath.Join(dir, "two", "data.sqlite3")))

		sqlDB, err := first.DB.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Ping()).NotTo(Succeed())
	})

	It("leaves the running config alone when the new one cannot be read", func() {
		Expect(app.Boot(writeConfig("config.yml", "data"), true)).To(Succeed())
		running := app.Config

		Expect(app.Boot(filepath.Join(dir, "missing.yml"), true)).NotTo(Succeed())
		Expect(app.Config).To(BeIdenticalTo(running))
	})
})
