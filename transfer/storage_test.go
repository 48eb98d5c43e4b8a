// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transfer_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/castor/backend/memory"
	"github.com/gogpu/castor/pixel"
	"github.com/gogpu/castor/transfer"
)

func newStore(t *testing.T, w, h int) *pixel.Store {
	t.Helper()
	s, err := pixel.New(gputypes.TextureFormatRGBA8Unorm, w, h)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newStorage(t *testing.T, dev *memory.Device, store *pixel.Store, cfg transfer.Config) *transfer.Storage {
	t.Helper()
	s, err := transfer.NewStorage(dev, store, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Initialise(); err != nil {
		t.Fatal(err)
	}
	return s
}

func textureBytes(t *testing.T, dev *memory.Device, s *transfer.Storage) []byte {
	t.Helper()
	data, err := dev.TextureData(s.Texture())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func filled(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestNewStorageErrors(t *testing.T) {
	if _, err := transfer.NewStorage(nil, newStore(t, 1, 1), transfer.Config{}); !errors.Is(err, transfer.ErrNilDevice) {
		t.Errorf("nil device: got %v", err)
	}
	if _, err := transfer.NewStorage(memory.NewDevice(), nil, transfer.Config{}); !errors.Is(err, transfer.ErrNilStore) {
		t.Errorf("nil store: got %v", err)
	}
}

func TestCapabilityGating(t *testing.T) {
	tests := []struct {
		name         string
		access       transfer.Access
		wantBuffers  int
		wantUpload   bool
		wantDownload bool
	}{
		{"none", 0, 0, false, false},
		{"gpu only", transfer.AccessGPURead | transfer.AccessGPUWrite, 0, false, false},
		{"cpu write", transfer.AccessCPUWrite, 2, true, false},
		{"cpu read", transfer.AccessCPURead, 2, false, true},
		{"cpu read write", transfer.AccessCPURead | transfer.AccessCPUWrite, 4, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := memory.NewDevice()
			s := newStorage(t, dev, newStore(t, 4, 4), transfer.Config{Access: tt.access})

			if got := dev.Stats().BuffersCreated; got != tt.wantBuffers {
				t.Errorf("BuffersCreated = %d, want %d", got, tt.wantBuffers)
			}
			if got := s.HasUploadBuffers(); got != tt.wantUpload {
				t.Errorf("HasUploadBuffers() = %v, want %v", got, tt.wantUpload)
			}
			if got := s.HasDownloadBuffers(); got != tt.wantDownload {
				t.Errorf("HasDownloadBuffers() = %v, want %v", got, tt.wantDownload)
			}
			if got := dev.Stats().TexturesCreated; got != 1 {
				t.Errorf("TexturesCreated = %d, want 1", got)
			}
		})
	}
}

func TestUploadAsyncLatency(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 4, 4)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessCPUWrite})
	n := store.Size()

	if err := dev.SetTextureData(s.Texture(), filled(n, 0x99)); err != nil {
		t.Fatal(err)
	}
	store.Fill(0x11)
	if err := s.UploadAsync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(n, 0x99)) {
		t.Errorf("after first upload texture = %x, want it untouched", got[:4])
	}

	store.Fill(0x22)
	if err := s.UploadAsync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(n, 0x11)) {
		t.Errorf("after second upload texture = %x, want first store", got[:4])
	}

	store.Fill(0x33)
	if err := s.UploadAsync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(n, 0x22)) {
		t.Errorf("after third upload texture = %x, want second store", got[:4])
	}

	if st := s.Stats(); st.Uploads != 3 || st.SyncUploads != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestDownloadAsyncLatency(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 4, 4)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessCPURead})
	n := store.Size()

	store.Fill(0x77)
	if err := dev.SetTextureData(s.Texture(), filled(n, 0xA1)); err != nil {
		t.Fatal(err)
	}
	if err := s.DownloadAsync(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(store.Ptr(), filled(n, 0x77)) {
		t.Errorf("after first download store = %x, want it untouched", store.Ptr()[:4])
	}

	if err := dev.SetTextureData(s.Texture(), filled(n, 0xB2)); err != nil {
		t.Fatal(err)
	}
	if err := s.DownloadAsync(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(store.Ptr(), filled(n, 0xA1)) {
		t.Errorf("after second download store = %x, want first texture", store.Ptr()[:4])
	}

	if err := s.DownloadAsync(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(store.Ptr(), filled(n, 0xB2)) {
		t.Errorf("after third download store = %x, want second texture", store.Ptr()[:4])
	}
}

func TestFirstReadLockKeepsStore(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 4, 4)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessCPURead | transfer.AccessCPUWrite})
	n := store.Size()

	store.Fill(0xAB)
	if err := s.UploadSync(); err != nil {
		t.Fatal(err)
	}

	data, err := s.Lock(transfer.AccessCPURead)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, filled(n, 0xAB)) {
		t.Errorf("store after first read lock = %x, want abababab", data[:4])
	}
	if err := s.Unlock(false); err != nil {
		t.Fatal(err)
	}

	// The second read delivers what the first one copied.
	if _, err := s.Lock(transfer.AccessCPURead); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(store.Ptr(), filled(n, 0xAB)) {
		t.Errorf("store after second read lock = %x, want abababab", store.Ptr()[:4])
	}
	if err := s.Unlock(false); err != nil {
		t.Fatal(err)
	}
}

func TestFirstUploadAsyncKeepsTexture(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 4, 4)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessCPUWrite})
	n := store.Size()

	store.Fill(0xCD)
	if err := s.UploadSync(); err != nil {
		t.Fatal(err)
	}
	store.Fill(0x01)
	if err := s.UploadAsync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(n, 0xCD)) {
		t.Errorf("texture after UploadSync and UploadAsync = %x, want cdcdcdcd", got[:4])
	}
	if dev.Stats().Submits != 0 {
		t.Errorf("Submits = %d, want 0 before any slot was filled", dev.Stats().Submits)
	}

	if err := s.UploadAsync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(n, 0x01)) {
		t.Errorf("texture after second UploadAsync = %x, want 01010101", got[:4])
	}
}

func TestAsyncWithoutBuffersIsNoop(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 2, 2)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessGPURead})

	store.Fill(0xFF)
	if err := s.UploadAsync(); err != nil {
		t.Fatal(err)
	}
	if err := s.DownloadAsync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(store.Size(), 0)) {
		t.Error("texture changed without upload buffers")
	}
	if dev.Stats().Submits != 0 {
		t.Errorf("Submits = %d, want 0", dev.Stats().Submits)
	}
}

func TestFenceWaits(t *testing.T) {
	dev := memory.NewDevice(memory.WithDeferredCompletion())
	store := newStore(t, 4, 4)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessCPUWrite})

	for range 4 {
		if err := s.UploadAsync(); err != nil {
			t.Fatal(err)
		}
	}
	// The first call copies nothing and the second reuses a slot that was
	// never submitted, so only the last two wait.
	if got := s.Stats().FenceWaits; got != 2 {
		t.Errorf("FenceWaits = %d, want 2", got)
	}
	if got := dev.Stats().Submits; got != 3 {
		t.Errorf("Submits = %d, want 3", got)
	}
}

func TestNoWaitWhenSignaled(t *testing.T) {
	dev := memory.NewDevice()
	s := newStorage(t, dev, newStore(t, 4, 4), transfer.Config{Access: transfer.AccessCPUWrite | transfer.AccessCPURead})

	for range 4 {
		if err := s.UploadAsync(); err != nil {
			t.Fatal(err)
		}
		if err := s.DownloadAsync(); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Stats().FenceWaits; got != 0 {
		t.Errorf("FenceWaits = %d, want 0", got)
	}
	if got := dev.Stats().Waits; got != 0 {
		t.Errorf("device Waits = %d, want 0", got)
	}
}

func TestSyncNoneNeverWaits(t *testing.T) {
	dev := memory.NewDevice(memory.WithDeferredCompletion())
	s := newStorage(t, dev, newStore(t, 4, 4), transfer.Config{
		Access: transfer.AccessCPUWrite,
		Sync:   transfer.SyncNone,
	})

	for range 4 {
		if err := s.UploadAsync(); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Stats().FenceWaits; got != 0 {
		t.Errorf("FenceWaits = %d, want 0", got)
	}
	if got := dev.Stats().Waits; got != 0 {
		t.Errorf("device Waits = %d, want 0", got)
	}
}

func TestFenceTimeout(t *testing.T) {
	dev := memory.NewDevice(memory.WithDeferredCompletion())
	dev.SetStalled(true)
	s := newStorage(t, dev, newStore(t, 4, 4), transfer.Config{Access: transfer.AccessCPUWrite})

	for i := range 2 {
		if err := s.UploadAsync(); err != nil {
			t.Fatalf("upload %d: %v", i+1, err)
		}
	}
	if err := s.UploadAsync(); !errors.Is(err, transfer.ErrFenceTimeout) {
		t.Fatalf("third upload = %v, want ErrFenceTimeout", err)
	}

	dev.SetStalled(false)
	if err := s.UploadAsync(); err != nil {
		t.Errorf("upload after recovery: %v", err)
	}
}

func TestSyncFallback(t *testing.T) {
	dev := memory.NewDevice(memory.WithBufferLimit(1))
	store := newStore(t, 4, 4)
	s := newStorage(t, dev, store, transfer.Config{Access: transfer.AccessCPUWrite | transfer.AccessCPURead})

	if s.HasUploadBuffers() || s.HasDownloadBuffers() {
		t.Fatal("staging buffers allocated past the limit")
	}
	if got := dev.Stats().LiveBuffers; got != 0 {
		t.Errorf("LiveBuffers = %d, want 0 after failed pairs", got)
	}

	data, err := s.Lock(transfer.AccessCPUWrite)
	if err != nil {
		t.Fatal(err)
	}
	copy(data, filled(len(data), 0x5A))
	if err := s.Unlock(true); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(store.Size(), 0x5A)) {
		t.Error("synchronous upload did not reach the texture")
	}

	if err := dev.SetTextureData(s.Texture(), filled(store.Size(), 0x6B)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Lock(transfer.AccessCPURead); err != nil {
		t.Fatal(err)
	}
	if err := s.Unlock(false); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(store.Ptr(), filled(store.Size(), 0x6B)) {
		t.Error("synchronous download did not reach the store")
	}

	if st := s.Stats(); st.SyncUploads != 1 || st.SyncDownloads != 1 || st.Uploads != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestLockUnlock(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 4, 4)
	s, err := transfer.NewStorage(dev, store, transfer.Config{Access: transfer.AccessCPUWrite})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Lock(transfer.AccessCPUWrite); !errors.Is(err, transfer.ErrNotInitialised) {
		t.Errorf("Lock before Initialise = %v", err)
	}
	if err := s.UploadAsync(); !errors.Is(err, transfer.ErrNotInitialised) {
		t.Errorf("UploadAsync before Initialise = %v", err)
	}
	if err := s.Initialise(); err != nil {
		t.Fatal(err)
	}
	if err := s.Unlock(true); !errors.Is(err, transfer.ErrNotLocked) {
		t.Errorf("Unlock without Lock = %v", err)
	}

	data, err := s.Lock(transfer.AccessCPUWrite)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != store.Size() {
		t.Errorf("Lock returned %d bytes, want %d", len(data), store.Size())
	}
	if _, err := s.Lock(transfer.AccessCPUWrite); !errors.Is(err, transfer.ErrAlreadyLocked) {
		t.Errorf("second Lock = %v", err)
	}
	copy(data, filled(len(data), 0x42))
	if err := s.Unlock(true); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); bytes.Equal(got, filled(store.Size(), 0x42)) {
		t.Error("texture updated in the same cycle")
	}

	if _, err := s.Lock(transfer.AccessCPUWrite); err != nil {
		t.Fatal(err)
	}
	if err := s.Unlock(true); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(store.Size(), 0x42)) {
		t.Error("texture not updated one cycle later")
	}

	if _, err := s.Lock(transfer.AccessCPUWrite); err != nil {
		t.Fatal(err)
	}
	if err := s.Unlock(false); err != nil {
		t.Fatal(err)
	}
	if got := s.Stats().Uploads; got != 2 {
		t.Errorf("Uploads = %d, want 2; unmodified unlock must not upload", got)
	}
}

func TestCleanupAndResize(t *testing.T) {
	dev := memory.NewDevice()
	s := newStorage(t, dev, newStore(t, 4, 4), transfer.Config{Access: transfer.AccessCPUWrite | transfer.AccessCPURead})

	bigger := newStore(t, 8, 8)
	if err := s.Resize(bigger); err != nil {
		t.Fatal(err)
	}
	if s.Store() != bigger {
		t.Error("Resize did not swap the store")
	}
	st := dev.Stats()
	if st.LiveBuffers != 4 || st.BuffersCreated != 8 || st.LiveTextures != 1 {
		t.Errorf("after Resize stats = %+v", st)
	}
	data, err := dev.TextureData(s.Texture())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != bigger.Size() {
		t.Errorf("texture size = %d, want %d", len(data), bigger.Size())
	}
	if err := s.UploadAsync(); err != nil {
		t.Errorf("upload after Resize: %v", err)
	}

	s.Cleanup()
	st = dev.Stats()
	if st.LiveBuffers != 0 || st.LiveTextures != 0 {
		t.Errorf("after Cleanup stats = %+v", st)
	}
	if s.Texture() != transfer.InvalidID {
		t.Error("Texture() valid after Cleanup")
	}
	if err := s.UploadAsync(); !errors.Is(err, transfer.ErrNotInitialised) {
		t.Errorf("UploadAsync after Cleanup = %v", err)
	}
	if err := s.Resize(nil); !errors.Is(err, transfer.ErrNilStore) {
		t.Errorf("Resize(nil) = %v", err)
	}
}

func TestSyncTransfers(t *testing.T) {
	dev := memory.NewDevice()
	store := newStore(t, 2, 2)
	s := newStorage(t, dev, store, transfer.Config{})

	store.Fill(0x7E)
	if err := s.UploadSync(); err != nil {
		t.Fatal(err)
	}
	if got := textureBytes(t, dev, s); !bytes.Equal(got, filled(store.Size(), 0x7E)) {
		t.Error("UploadSync did not reach the texture")
	}

	store.Fill(0)
	if err := s.DownloadSync(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(store.Ptr(), filled(store.Size(), 0x7E)) {
		t.Error("DownloadSync did not reach the store")
	}
}
