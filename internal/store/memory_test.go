package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "licensegate/internal/errors"
)

func TestMemoryFindLicense(t *testing.T) {
	mem := NewMemory()
	mem.Put(&LicenseRecord{
		LicenseKey: "LIC-1",
		IsActive:   true,
		ExpireTime: 1700000000,
		Machines:   []string{"M1"},
		MaxDevices: 2,
	})

	t.Run("found returns a snapshot", func(t *testing.T) {
		record, err := mem.FindLicense(context.Background(), "LIC-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"M1"}, record.Machines)

		// Mutating the snapshot must not leak back into the store.
		record.Machines = append(record.Machines, "M2")
		again, err := mem.FindLicense(context.Background(), "LIC-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"M1"}, again.Machines)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := mem.FindLicense(context.Background(), "NOPE")
		assert.ErrorIs(t, err, apperrors.ErrLicenseNotFound)
	})
}

func TestMemoryUpdateBinding(t *testing.T) {
	t.Run("compare and swap applies on matching snapshot", func(t *testing.T) {
		mem := NewMemory()
		mem.Put(&LicenseRecord{LicenseKey: "LIC-1", IsActive: true, ExpireTime: 1, MaxDevices: 2})

		activatedAt := int64(1700000000)
		err := mem.UpdateBinding(context.Background(), "LIC-1", nil, []string{"M1"}, &activatedAt)
		require.NoError(t, err)

		record, err := mem.FindLicense(context.Background(), "LIC-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"M1"}, record.Machines)
		require.NotNil(t, record.ActivatedAt)
		assert.Equal(t, activatedAt, *record.ActivatedAt)
	})

	t.Run("stale snapshot conflicts", func(t *testing.T) {
		mem := NewMemory()
		mem.Put(&LicenseRecord{LicenseKey: "LIC-1", IsActive: true, ExpireTime: 1, MaxDevices: 2, Machines: []string{"M1"}})

		err := mem.UpdateBinding(context.Background(), "LIC-1", nil, []string{"M2"}, nil)
		assert.ErrorIs(t, err, apperrors.ErrBindingConflict)

		record, _ := mem.FindLicense(context.Background(), "LIC-1")
		assert.Equal(t, []string{"M1"}, record.Machines, "conflicting write must not land")
	})

	t.Run("unknown license", func(t *testing.T) {
		mem := NewMemory()
		err := mem.UpdateBinding(context.Background(), "NOPE", nil, []string{"M1"}, nil)
		assert.ErrorIs(t, err, apperrors.ErrLicenseNotFound)
	})

	t.Run("racing activations over-provision at most zero slots", func(t *testing.T) {
		mem := NewMemory()
		mem.Put(&LicenseRecord{LicenseKey: "LIC-1", IsActive: true, ExpireTime: 1, MaxDevices: 1})

		var wg sync.WaitGroup
		results := make([]error, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				machine := []string{string(rune('A' + i))}
				results[i] = mem.UpdateBinding(context.Background(), "LIC-1", nil, machine, nil)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, apperrors.ErrBindingConflict)
			}
		}
		assert.Equal(t, 1, winners, "exactly one racing activation may land")

		record, _ := mem.FindLicense(context.Background(), "LIC-1")
		assert.Len(t, record.Machines, 1)
	})
}

func TestMemoryAppendVerifyLog(t *testing.T) {
	mem := NewMemory()

	err := mem.AppendVerifyLog(context.Background(), &VerifyLogEntry{
		LicenseKey: "LIC-1",
		MachineID:  "M1",
		VerifyTime: 1700000000,
		IPAddress:  "203.0.113.7",
	})
	require.NoError(t, err)

	logs := mem.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "LIC-1", logs[0].LicenseKey)
	assert.Equal(t, "203.0.113.7", logs[0].IPAddress)
}

func TestUnconfiguredStore(t *testing.T) {
	var st Store = Unconfigured{}

	_, err := st.FindLicense(context.Background(), "LIC-1")
	assert.ErrorIs(t, err, apperrors.ErrStoreNotConfigured)

	err = st.UpdateBinding(context.Background(), "LIC-1", nil, []string{"M1"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrStoreNotConfigured)

	err = st.AppendVerifyLog(context.Background(), &VerifyLogEntry{})
	assert.ErrorIs(t, err, apperrors.ErrStoreNotConfigured)

	assert.ErrorIs(t, st.Ping(context.Background()), apperrors.ErrStoreNotConfigured)
}
