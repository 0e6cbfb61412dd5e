package store

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("dsn", func() {
	It("leaves an in-memory database alone", func() {
		Expect(dsn(":memory:")).To(Equal(":memory:"))
	})

	It("keeps caller supplied parameters", func() {
		Expect(dsn("data.sqlite3?mode=ro")).To(Equal("data.sqlite3?mode=ro"))
	})

	It("waits on locks and journals with WAL for files", func() {
		Expect(dsn("data/data.sqlite3")).To(Equal("data/data.sqlite3?_busy_timeout=5000&_journal_mode=WAL"))
	})
})

var _ = Describe("New", func() {
	It("opens a file database", func() {
		path := filepath.Join(GinkgoT().TempDir(), "data.sqlite3")
		s, err := New(path, true)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		Expect(s.Path).To(Equal(path))
		Expect(s.DB.Migrator().HasTable(&ConnectionRecord{})).To(BeTrue())
	})
})
