// Package abook serves an abook addressbook file as a CardDAV
// collection.
package abook

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"

	"remdav/internal/log"
	"remdav/internal/metrics"
	"remdav/storage"
)

func init() {
	// abook writes key=value without padding; keep rewrites diffable.
	ini.PrettyFormat = false
}

// fieldOrder is the abook field layout, used to keep rewrites stable.
var fieldOrder = []string{
	"name", "email",
	"address", "address2", "city", "state", "zip", "country",
	"phone", "workphone", "fax", "mobile",
	"nick", "url", "notes", "anniversary",
}

// contact is one numbered section of the addressbook.
type contact struct {
	Fields map[string]string
}

// Adapter implements storage.Adapter over an abook file. It serves a
// single collection.
type Adapter struct {
	path    string
	baseDir string
	logger  zerolog.Logger

	mu       sync.Mutex
	contacts []contact
	// format holds the [format] section key/value pairs in file order,
	// round-tripped on every rewrite.
	format [][2]string
	mtime  time.Time
	loaded bool
}

// New creates an adapter for the given abook addressbook file.
func New(path, baseDir string) *Adapter {
	return &Adapter{
		path:    path,
		baseDir: baseDir,
		logger:  log.WithComponent("abook"),
	}
}

func (a *Adapter) Name() string       { return "abook" }
func (a *Adapter) Kind() storage.Kind { return storage.KindAddressBook }

// Paths returns the files to watch for external modification.
func (a *Adapter) Paths() []string { return []string{a.path} }

// Invalidate drops the cached parse; the next access reloads.
func (a *Adapter) Invalidate() {
	a.mu.Lock()
	a.loaded = false
	a.mu.Unlock()
}

func (a *Adapter) collectionPath() string {
	if a.baseDir != "" {
		if rel, err := filepath.Rel(a.baseDir, a.path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(a.path)
}

func (a *Adapter) Collections() ([]storage.Collection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	return []storage.Collection{{
		Path:         a.collectionPath(),
		Kind:         storage.KindAddressBook,
		LastModified: a.mtime,
	}}, nil
}

func (a *Adapter) UIDs(collection string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkCollectionLocked(collection); err != nil {
		return nil, err
	}
	uids := make([]string, 0, len(a.contacts))
	for _, c := range a.contacts {
		uids = append(uids, uidFor(c))
	}
	return uids, nil
}

func (a *Adapter) Get(collection, uid string) (*storage.Object, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkCollectionLocked(collection); err != nil {
		return nil, err
	}
	for _, c := range a.contacts {
		if uidFor(c) == uid {
			metrics.RecordObjectServed(a.Name())
			return &storage.Object{
				ID:           uid,
				ETag:         storage.ETag(uid),
				LastModified: a.mtime,
				Card:         toCard(c, uid),
			}, nil
		}
	}
	return nil, fmt.Errorf("uid %s: %w", uid, storage.ErrNotFound)
}

func (a *Adapter) Put(collection string, obj *storage.Object) (string, error) {
	if obj == nil || obj.Card == nil {
		return "", fmt.Errorf("missing card payload: %w", storage.ErrInvalidInput)
	}
	c, err := fromCard(obj.Card)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkCollectionLocked(collection); err != nil {
		return "", err
	}

	replaced := false
	if obj.ID != "" {
		for i := range a.contacts {
			if uidFor(a.contacts[i]) == obj.ID {
				// Keep fields the vCard mapping does not cover, so a
				// client edit never loses abook-only data.
				for key, v := range a.contacts[i].Fields {
					if !isMappedField(key) {
						if _, ok := c.Fields[key]; !ok {
							c.Fields[key] = v
						}
					}
				}
				a.contacts[i] = c
				replaced = true
				break
			}
		}
	}
	if !replaced {
		a.contacts = append(a.contacts, c)
	}
	if err := a.writeLocked(); err != nil {
		return "", err
	}
	return uidFor(c), nil
}

func (a *Adapter) Remove(collection, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkCollectionLocked(collection); err != nil {
		return err
	}
	for i := range a.contacts {
		if uidFor(a.contacts[i]) == uid {
			a.contacts = append(a.contacts[:i], a.contacts[i+1:]...)
			return a.writeLocked()
		}
	}
	return fmt.Errorf("uid %s: %w", uid, storage.ErrNotFound)
}

func (a *Adapter) LastModified() (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureLoadedLocked(); err != nil {
		return time.Time{}, err
	}
	return a.mtime, nil
}

func (a *Adapter) checkCollectionLocked(collection string) error {
	if err := a.ensureLoadedLocked(); err != nil {
		return err
	}
	if strings.Trim(collection, "/") != a.collectionPath() {
		return fmt.Errorf("collection %q: %w", collection, storage.ErrNotFound)
	}
	return nil
}

func (a *Adapter) ensureLoadedLocked() error {
	info, statErr := os.Stat(a.path)
	if a.loaded {
		if statErr == nil && info.ModTime().Equal(a.mtime) {
			return nil
		}
	}

	if os.IsNotExist(statErr) {
		// Created on first write, like the remind root file.
		a.contacts = nil
		a.format = defaultFormat()
		a.mtime = time.Time{}
		a.loaded = true
		return nil
	}

	file, err := ini.Load(a.path)
	metrics.RecordReload(a.Name(), err)
	if err != nil {
		return fmt.Errorf("parse abook file: %w", err)
	}

	var format [][2]string
	if sec, err := file.GetSection("format"); err == nil {
		for _, key := range sec.Keys() {
			format = append(format, [2]string{key.Name(), key.Value()})
		}
	}
	if len(format) == 0 {
		format = defaultFormat()
	}

	var contacts []contact
	for _, sec := range file.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || name == "format" {
			continue
		}
		c := contact{Fields: map[string]string{}}
		for _, key := range sec.Keys() {
			c.Fields[key.Name()] = key.Value()
		}
		if c.Fields["name"] == "" {
			a.logger.Warn().Str("section", name).Msg("skipping contact without name")
			continue
		}
		contacts = append(contacts, c)
	}
	a.contacts = contacts
	a.format = format
	a.mtime = info.ModTime()
	a.loaded = true
	return nil
}

func (a *Adapter) writeLocked() error {
	file := ini.Empty()
	format, err := file.NewSection("format")
	if err != nil {
		return err
	}
	for _, kv := range a.format {
		if _, err := format.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}

	for i, c := range a.contacts {
		sec, err := file.NewSection(fmt.Sprintf("%d", i))
		if err != nil {
			return err
		}
		for _, key := range fieldOrder {
			if v, ok := c.Fields[key]; ok && v != "" {
				if _, err := sec.NewKey(key, v); err != nil {
					return err
				}
			}
		}
		// Fields abook knows but the vCard mapping does not (custom1..5,
		// groups, ...) survive the rewrite untouched.
		extras := make([]string, 0, len(c.Fields))
		for key := range c.Fields {
			if !isMappedField(key) {
				extras = append(extras, key)
			}
		}
		sort.Strings(extras)
		for _, key := range extras {
			if v := c.Fields[key]; v != "" {
				if _, err := sec.NewKey(key, v); err != nil {
					return err
				}
			}
		}
	}

	var buf strings.Builder
	if _, err := file.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize abook file: %w", err)
	}
	if err := renameio.WriteFile(a.path, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("write abook file: %w", err)
	}
	a.loaded = false
	return nil
}

// isMappedField reports whether the key takes part in the vCard
// mapping.
func isMappedField(key string) bool {
	for _, f := range fieldOrder {
		if f == key {
			return true
		}
	}
	return false
}

func defaultFormat() [][2]string {
	return [][2]string{{"program", "abook"}, {"version", "0.6.1"}}
}

// uidFor derives the UID from the contact name, which abook treats as
// the entry identity.
func uidFor(c contact) string {
	sum := sha1.Sum([]byte(c.Fields["name"]))
	return hex.EncodeToString(sum[:]) + "@remdav"
}
