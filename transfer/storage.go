// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package transfer moves pixel data between a CPU pixel store and a GPU
// texture without stalling the caller.
//
// Each direction uses two staging buffers in alternation. While the GPU copies
// from one, the CPU fills the other, so a transfer issued in one cycle becomes
// visible in the next. Storages created without CPU write access never
// allocate upload buffers, and without CPU read access never allocate
// download buffers.
package transfer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/castor"
	"github.com/gogpu/castor/pixel"
)

// Stats counts the transfers a storage performed.
type Stats struct {
	Uploads       uint64
	Downloads     uint64
	SyncUploads   uint64
	SyncDownloads uint64
	FenceWaits    uint64
}

// Storage binds a pixel store to a GPU texture.
//
// Storage is safe for concurrent use, but transfers are serialized.
type Storage struct {
	dev Device
	cfg Config

	mu          sync.Mutex
	store       *pixel.Store
	texture     TextureID
	upload      *rotation
	download    *rotation
	initialised bool
	locked      bool

	uploads       atomic.Uint64
	downloads     atomic.Uint64
	syncUploads   atomic.Uint64
	syncDownloads atomic.Uint64
	fenceWaits    atomic.Uint64
}

// NewStorage returns an uninitialised storage for store.
func NewStorage(dev Device, store *pixel.Store, cfg Config) (*Storage, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if store == nil {
		return nil, ErrNilStore
	}
	return &Storage{dev: dev, cfg: cfg, store: store}, nil
}

// Initialise creates the texture and the staging pairs the access flags
// allow. Failing to create a pair is not fatal: that direction falls back to
// synchronous transfers.
func (s *Storage) Initialise() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialised {
		return nil
	}

	label := s.cfg.label()
	tex, err := s.dev.CreateTexture(label, s.store.Format(), s.store.Extent())
	if err != nil {
		return fmt.Errorf("transfer: create texture %s: %w", label, err)
	}
	s.texture = tex

	if s.cfg.Access.Has(AccessCPUWrite) {
		s.upload = s.createRotation(label, RoleUpload)
	}
	if s.cfg.Access.Has(AccessCPURead) {
		s.download = s.createRotation(label, RoleDownload)
	}
	s.initialised = true

	castor.Logger().Info("transfer: storage initialised",
		"label", label, "access", s.cfg.Access.String(), "sync", s.cfg.Sync.String(),
		"bytes", s.store.Size(), "upload", s.upload != nil, "download", s.download != nil)
	return nil
}

func (s *Storage) createRotation(label string, role Role) *rotation {
	r, err := newRotation(s.dev, label, role, s.store.Size())
	if err != nil {
		castor.Logger().Warn("transfer: staging buffers unavailable, using synchronous path",
			"label", label, "role", role.String(), "error", err)
		return nil
	}
	return r
}

// Texture returns the GPU texture, or InvalidID before Initialise.
func (s *Storage) Texture() TextureID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}

// Store returns the pixel store.
func (s *Storage) Store() *pixel.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// HasUploadBuffers reports whether asynchronous upload is available.
func (s *Storage) HasUploadBuffers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload != nil
}

// HasDownloadBuffers reports whether asynchronous download is available.
func (s *Storage) HasDownloadBuffers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.download != nil
}

// Lock gives the caller the pixel store's bytes. With AccessCPURead it first
// triggers a download; with staging buffers that download lands one cycle
// later.
func (s *Storage) Lock(access Access) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return nil, ErrNotInitialised
	}
	if s.locked {
		return nil, ErrAlreadyLocked
	}
	if access.Has(AccessCPURead) {
		if err := s.readLocked(); err != nil {
			return nil, err
		}
	}
	s.locked = true
	return s.store.Ptr(), nil
}

// Unlock ends a Lock. When modified is true the store is uploaded; with
// staging buffers that upload reaches the texture one cycle later.
func (s *Storage) Unlock(modified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.locked {
		return ErrNotLocked
	}
	s.locked = false
	if !modified {
		return nil
	}
	return s.writeLocked()
}

// readLocked downloads through staging buffers, or synchronously when the
// storage wants CPU reads but has no download pair.
func (s *Storage) readLocked() error {
	switch {
	case s.download != nil:
		return s.downloadAsyncLocked()
	case s.cfg.Access.Has(AccessCPURead):
		return s.downloadSyncLocked()
	default:
		return nil
	}
}

func (s *Storage) writeLocked() error {
	switch {
	case s.upload != nil:
		return s.uploadAsyncLocked()
	case s.cfg.Access.Has(AccessCPUWrite):
		return s.uploadSyncLocked()
	default:
		return nil
	}
}

// UploadAsync pushes the pixel store towards the texture. The texture
// receives the store contents captured by the previous call; this call's
// contents arrive on the next one, so the first call leaves the texture
// untouched. Without upload buffers it does nothing.
func (s *Storage) UploadAsync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return ErrNotInitialised
	}
	return s.uploadAsyncLocked()
}

func (s *Storage) uploadAsyncLocked() error {
	if s.upload == nil {
		return nil
	}

	// A slot that was never filled would overwrite the texture with zeros.
	cur := s.upload.advance()
	if cur.written {
		if err := s.dev.CopyBufferToTexture(cur.id, s.texture, s.layout()); err != nil {
			return fmt.Errorf("transfer: upload copy: %w", err)
		}
		fence, err := s.dev.Submit()
		if err != nil {
			return fmt.Errorf("transfer: upload submit: %w", err)
		}
		cur.fence = fence
	}

	next := s.upload.other()
	if err := s.waitSlot(next); err != nil {
		return err
	}
	if err := next.Fill(s.store); err != nil {
		return err
	}

	s.uploads.Add(1)
	castor.Logger().Debug("transfer: upload", "label", s.cfg.label(),
		"copied", cur.slot, "filled", next.slot, "fence", uint64(cur.fence))
	return nil
}

// DownloadAsync pulls the texture towards the pixel store. The store
// receives the texture contents copied by the previous call, so the first
// call leaves the store untouched. Without download buffers it does nothing.
func (s *Storage) DownloadAsync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return ErrNotInitialised
	}
	return s.downloadAsyncLocked()
}

func (s *Storage) downloadAsyncLocked() error {
	if s.download == nil {
		return nil
	}

	cur := s.download.advance()
	if err := s.dev.CopyTextureToBuffer(s.texture, cur.id, s.layout()); err != nil {
		return fmt.Errorf("transfer: download copy: %w", err)
	}
	fence, err := s.dev.Submit()
	if err != nil {
		return fmt.Errorf("transfer: download submit: %w", err)
	}
	cur.fence = fence
	cur.written = true

	// The store keeps its contents until a slot has been copied into.
	prev := s.download.other()
	if prev.written {
		if err := s.waitSlot(prev); err != nil {
			return err
		}
		if err := prev.Read(s.store); err != nil {
			return err
		}
	}

	s.downloads.Add(1)
	castor.Logger().Debug("transfer: download", "label", s.cfg.label(),
		"copied", cur.slot, "read", prev.slot, "fence", uint64(fence))
	return nil
}

// UploadSync writes the pixel store into the texture immediately.
func (s *Storage) UploadSync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return ErrNotInitialised
	}
	return s.uploadSyncLocked()
}

func (s *Storage) uploadSyncLocked() error {
	if err := s.dev.WriteTexture(s.texture, s.store.Ptr(), s.layout()); err != nil {
		return fmt.Errorf("transfer: write texture: %w", err)
	}
	s.syncUploads.Add(1)
	return nil
}

// DownloadSync reads the texture into the pixel store immediately.
func (s *Storage) DownloadSync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return ErrNotInitialised
	}
	return s.downloadSyncLocked()
}

func (s *Storage) downloadSyncLocked() error {
	if err := s.dev.ReadTexture(s.texture, s.store.Ptr(), s.layout()); err != nil {
		return fmt.Errorf("transfer: read texture: %w", err)
	}
	s.syncDownloads.Add(1)
	return nil
}

// waitSlot blocks until the GPU has finished with b, unless the storage
// runs in SyncNone mode.
func (s *Storage) waitSlot(b *Buffer) error {
	if s.cfg.Sync == SyncNone || b.fence == 0 {
		return nil
	}
	done, err := s.dev.FenceStatus(b.fence)
	if err != nil {
		return fmt.Errorf("transfer: fence status: %w", err)
	}
	if done {
		return nil
	}

	s.fenceWaits.Add(1)
	castor.Logger().Debug("transfer: waiting on slot", "buffer", b.label, "fence", uint64(b.fence))
	ok, err := s.dev.Wait(b.fence, s.cfg.fenceTimeout())
	if err != nil {
		return fmt.Errorf("transfer: wait %s: %w", b.label, err)
	}
	if !ok {
		castor.Logger().Warn("transfer: fence wait timed out", "buffer", b.label, "fence", uint64(b.fence))
		return fmt.Errorf("%w: %s", ErrFenceTimeout, b.label)
	}
	return nil
}

func (s *Storage) layout() Layout {
	return Layout{
		BytesPerRow: uint32(s.store.BytesPerRow()),
		Size:        s.store.Extent(),
	}
}

// Cleanup destroys the staging buffers and the texture. The storage can be
// initialised again afterwards.
func (s *Storage) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
}

func (s *Storage) cleanupLocked() {
	if s.upload != nil {
		s.upload.destroy()
		s.upload = nil
	}
	if s.download != nil {
		s.download.destroy()
		s.download = nil
	}
	if s.texture != InvalidID {
		s.dev.DestroyTexture(s.texture)
		s.texture = InvalidID
	}
	s.initialised = false
	s.locked = false
}

// Resize replaces the pixel store and recreates the texture and staging
// buffers at the new size.
func (s *Storage) Resize(store *pixel.Store) error {
	if store == nil {
		return ErrNilStore
	}
	s.mu.Lock()
	wasInitialised := s.initialised
	s.cleanupLocked()
	s.store = store
	s.mu.Unlock()

	if !wasInitialised {
		return nil
	}
	return s.Initialise()
}

// Stats returns the transfer counters.
func (s *Storage) Stats() Stats {
	return Stats{
		Uploads:       s.uploads.Load(),
		Downloads:     s.downloads.Load(),
		SyncUploads:   s.syncUploads.Load(),
		SyncDownloads: s.syncDownloads.Load(),
		FenceWaits:    s.fenceWaits.Load(),
	}
}
