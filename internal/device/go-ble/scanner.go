package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/progressor/internal/device"
)

// Scanner finds advertising gauges through a go-ble device
type Scanner struct {
	logger *logrus.Logger
}

// NewScanner creates a device.Scanner backed by DeviceFactory
func NewScanner(logger *logrus.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan reports each device whose advertised name starts with opts.NamePrefix, once per address.
// It returns nil when opts.Timeout elapses and ctx.Err() when ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, opts device.DiscoverOptions, handler func(device.DeviceInfo)) error {
	prefix := opts.NamePrefix
	if prefix == "" {
		prefix = device.DefaultNamePrefix
	}

	dev, err := DeviceFactory()
	if err != nil {
		return NormalizeError(err)
	}

	scanCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	s.logger.WithFields(logrus.Fields{
		"prefix":  prefix,
		"timeout": opts.Timeout,
	}).Debug("Scanning for devices...")

	seen := hashmap.New[string, device.DeviceInfo]()

	err = dev.Scan(scanCtx, false, func(adv ble.Advertisement) {
		info, ok := deviceInfoFrom(adv)
		if !ok || !matchesPrefix(info, prefix) {
			return
		}
		if !seen.Insert(info.Address, info) {
			return
		}

		s.logger.WithFields(logrus.Fields{
			"name":    info.Name,
			"address": info.Address,
			"rssi":    info.RSSI,
		}).Debug("Found device")
		handler(info)
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return NormalizeError(err)
	}
	return nil
}

// Discover returns the first advertising device whose name starts with opts.NamePrefix
func (s *Scanner) Discover(ctx context.Context, opts device.DiscoverOptions) (device.DeviceInfo, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		found *device.DeviceInfo
	)

	err := s.Scan(scanCtx, opts, func(info device.DeviceInfo) {
		mu.Lock()
		defer mu.Unlock()
		if found == nil {
			found = &info
			cancel()
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if found != nil {
		return *found, nil
	}
	if err != nil {
		return device.DeviceInfo{}, err
	}

	prefix := opts.NamePrefix
	if prefix == "" {
		prefix = device.DefaultNamePrefix
	}
	return device.DeviceInfo{}, fmt.Errorf("%w: no device named %q* within %s", device.ErrNoDevice, prefix, opts.Timeout)
}
