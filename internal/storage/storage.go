package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/L1nMay/homeports/internal/model"
)

const (
	bucketDevices = "devices"
	bucketNotes   = "notes"
	bucketScans   = "scans"
)

var errNoBucket = errors.New("bucket not found")

// Note is the user-supplied label for a device.
type Note struct {
	Name string `json:"name"`
	Note string `json:"note"`
}

// Storage keeps the device set, device notes and scan history in one bbolt file.
type Storage struct {
	db *bbolt.DB
}

func NewStorage(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketDevices, bucketNotes, bucketScans} {
			if _, e := tx.CreateBucketIfNotExists([]byte(name)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveDevices replaces the stored device set.
func (s *Storage) SaveDevices(devices []model.DeviceRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketDevices)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket([]byte(bucketDevices))
		if err != nil {
			return err
		}
		for _, d := range devices {
			d.CustomName = ""
			data, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(d.Key()), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) LoadDevices() ([]model.DeviceRecord, error) {
	out := []model.DeviceRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDevices))
		if b == nil {
			return errNoBucket
		}
		return b.ForEach(func(_, v []byte) error {
			var d model.DeviceRecord
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

// SetNote stores a display name for ip. An empty name removes the note.
func (s *Storage) SetNote(ip, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketNotes))
		if b == nil {
			return errNoBucket
		}
		if name == "" {
			return b.Delete([]byte(ip))
		}
		data, err := json.Marshal(Note{Name: name})
		if err != nil {
			return err
		}
		return b.Put([]byte(ip), data)
	})
}

// Names returns the display name of every annotated device.
func (s *Storage) Names() (map[string]string, error) {
	out := map[string]string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketNotes))
		if b == nil {
			return errNoBucket
		}
		return b.ForEach(func(k, v []byte) error {
			var n Note
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			out[string(k)] = n.Name
			return nil
		})
	})
	return out, err
}

func (s *Storage) AddScanRun(_ context.Context, run *model.ScanRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketScans))
		if b == nil {
			return errNoBucket
		}
		return b.Put([]byte(run.ID), data)
	})
}

// ListScanRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Storage) ListScanRuns(limit int) ([]model.ScanRun, error) {
	out := []model.ScanRun{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketScans))
		if b == nil {
			return errNoBucket
		}
		return b.ForEach(func(_, v []byte) error {
			var r model.ScanRun
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Stats struct {
	Devices   int `json:"devices"`
	OpenPorts int `json:"open_ports"`
	HighRisk  int `json:"high_risk"`
}

func (s *Storage) GetStats() (Stats, error) {
	devices, err := s.LoadDevices()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Devices: len(devices)}
	for _, d := range devices {
		st.OpenPorts += len(d.Ports)
		for _, p := range d.Ports {
			if p.Risk == model.RiskHigh {
				st.HighRisk++
			}
		}
	}
	return st, nil
}
