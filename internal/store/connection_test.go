package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"bbsgate/internal/store"
)

var _ = Describe("Connection Records", func() {
	var db *store.Store

	BeforeEach(func() {
		var err error
		db, err = store.New(":memory:", true)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	record := func(id, ttype string, at time.Time) *store.ConnectionRecord {
		return &store.ConnectionRecord{
			ConnID:       id,
			Transport:    "telnet",
			Node:         1,
			RemoteAddr:   "127.0.0.1:50000",
			TerminalType: ttype,
			Width:        80,
			Height:       24,
			ConnectedAt:  at,
			Duration:     time.Minute,
		}
	}

	It("remembers the path it was opened from", func() {
		Expect(db.Path).To(Equal(":memory:"))
	})

	Describe("RecordConnection", func() {
		It("stores a record", func() {
			Expect(db.RecordConnection(record("a", "xterm", time.Now()))).To(Succeed())

			records, err := db.RecentConnections(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].TerminalType).To(Equal("xterm"))
			Expect(records[0].Duration).To(Equal(time.Minute))
		})

		It("rejects a duplicate connection id", func() {
			Expect(db.RecordConnection(record("dupe", "ansi", time.Now()))).To(Succeed())
			Expect(db.RecordConnection(record("dupe", "ansi", time.Now()))).NotTo(Succeed())
		})
	})

	Describe("RecentConnections", func() {
		BeforeEach(func() {
			now := time.Now()
			Expect(db.RecordConnection(record("old", "ansi", now.Add(-2*time.Hour)))).To(Succeed())
			Expect(db.RecordConnection(record("new", "xterm", now))).To(Succeed())
			Expect(db.RecordConnection(record("mid", "ansi", now.Add(-time.Hour)))).To(Succeed())
		})

		It("returns the newest first", func() {
			records, err := db.RecentConnections(0)
			Expect(err).NotTo(HaveOccurred())
			ids := []string{records[0].ConnID, records[1].ConnID, records[2].ConnID}
			Expect(ids).To(Equal([]string{"new", "mid", "old"}))
		})

		It("honours the limit", func() {
			records, err := db.RecentConnections(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("tallies terminal types", func() {
			counts, err := db.CountByTerminalType()
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(Equal(map[string]int64{"ansi": 2, "xterm": 1}))
		})
	})

	Describe("Environment", func() {
		It("keeps variables in order", func() {
			rec := record("env", "xterm", time.Now())
			rec.Environment = []store.EnvVar{{Name: "TERM", Value: "xterm"}, {Name: "LANG", Value: "C"}}
			Expect(db.RecordConnection(rec)).To(Succeed())

			records, err := db.RecentConnections(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Environment).To(Equal(rec.Environment))
		})

		It("stores the variables as JSON text", func() {
			rec := record("json", "xterm", time.Now())
			rec.Environment = []store.EnvVar{{Name: "LANG", Value: "C"}}
			Expect(db.RecordConnection(rec)).To(Succeed())

			var raw string
			Expect(db.DB.Model(&store.ConnectionRecord{}).
				Where("conn_id = ?", "json").
				Select("environment").
				Scan(&raw).Error).To(Succeed())
			Expect(raw).To(MatchJSON(`[{"name":"LANG","value":"C"}]`))
		})

		It("reads an empty environment back as empty", func() {
			Expect(db.RecordConnection(record("none", "xterm", time.Now()))).To(Succeed())

			records, err := db.RecentConnections(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Environment).To(BeEmpty())
		})
	})
})
