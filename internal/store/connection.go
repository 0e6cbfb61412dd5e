package store

import (
	"time"

	"gorm.io/gorm"
)

// ConnectionRecord is the audit entry written when a caller disconnects.
type ConnectionRecord struct {
	gorm.Model
	ConnID       string `gorm:"uniqueIndex"`
	Transport    string `gorm:"index"` // telnet or ssh
	Node         int
	RemoteAddr   string
	TerminalType string
	Width        int
	Height       int
	Environment  []EnvVar `gorm:"type:text;serializer:json"` // in negotiation order
	BytesRead    int64
	BytesWritten int64
	ConnectedAt  time.Time `gorm:"index"`
	Duration     time.Duration
}

// EnvVar mirrors one negotiated environment variable.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Store) RecordConnection(rec *ConnectionRecord) error {
	return s.DB.Create(rec).Error
}

// RecentConnections returns up to limit records, newest first.
func (s *Store) RecentConnections(limit int) ([]ConnectionRecord, error) {
	var records []ConnectionRecord
	q := s.DB.Order("connected_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountByTerminalType tallies stored connections per terminal type.
func (s *Store) CountByTerminalType() (map[string]int64, error) {
	var rows []struct {
		TerminalType string
		Count        int64
	}
	err := s.DB.Model(&ConnectionRecord{}).
		Select("terminal_type, count(*) as count").
		Group("terminal_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.TerminalType] = row.Count
	}
	return counts, nil
}
