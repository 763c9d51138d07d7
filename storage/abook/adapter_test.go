package abook

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/emersion/go-vcard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remdav/storage"
)

const sampleAddressbook = `[format]
program=abook
version=0.6.1

[0]
name=Jane Doe
email=jane@example.org
mobile=+49123456

[1]
name=John Smith
email=john@example.org
`

func writeAddressbook(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, ".abook")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return dir, path
}

func nameUID(name string) string {
	sum := sha1.Sum([]byte(name))
	return hex.EncodeToString(sum[:]) + "@remdav"
}

func TestAbookCollections(t *testing.T) {
	dir, path := writeAddressbook(t, sampleAddressbook)

	a := New(path, dir)
	cols, err := a.Collections()
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, ".abook", cols[0].Path)
	assert.Equal(t, storage.KindAddressBook, cols[0].Kind)
}

func TestAbookUIDsAndGet(t *testing.T) {
	dir, path := writeAddressbook(t, sampleAddressbook)

	a := New(path, dir)
	uids, err := a.UIDs(".abook")
	require.NoError(t, err)
	assert.Equal(t, []string{nameUID("Jane Doe"), nameUID("John Smith")}, uids)

	obj, err := a.Get(".abook", nameUID("Jane Doe"))
	require.NoError(t, err)
	assert.Equal(t, nameUID("Jane Doe"), obj.ID)
	assert.Equal(t, storage.ETag(obj.ID), obj.ETag)
	assert.Equal(t, "Jane Doe", obj.Card.Value(vcard.FieldFormattedName))
	assert.Equal(t, "jane@example.org", obj.Card.Value(vcard.FieldEmail))

	_, err = a.Get(".abook", "missing@remdav")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = a.Get("elsewhere", nameUID("Jane Doe"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAbookPut(t *testing.T) {
	dir, path := writeAddressbook(t, sampleAddressbook)
	a := New(path, dir)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, "Ada Lovelace")
	card.AddValue(vcard.FieldEmail, "ada@example.org")

	uid, err := a.Put(".abook", &storage.Object{Card: card})
	require.NoError(t, err)
	assert.Equal(t, nameUID("Ada Lovelace"), uid)

	uids, err := a.UIDs(".abook")
	require.NoError(t, err)
	assert.Len(t, uids, 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name=Ada Lovelace")
	assert.Contains(t, string(data), "email=ada@example.org")
	// Existing entries survive the rewrite.
	assert.Contains(t, string(data), "name=Jane Doe")
}

func TestAbookPutReplaces(t *testing.T) {
	dir, path := writeAddressbook(t, sampleAddressbook)
	a := New(path, dir)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, "Jane Doe")
	card.AddValue(vcard.FieldEmail, "jane.doe@new.example")

	uid, err := a.Put(".abook", &storage.Object{ID: nameUID("Jane Doe"), Card: card})
	require.NoError(t, err)
	assert.Equal(t, nameUID("Jane Doe"), uid)

	uids, err := a.UIDs(".abook")
	require.NoError(t, err)
	assert.Len(t, uids, 2)

	obj, err := a.Get(".abook", uid)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@new.example", obj.Card.Value(vcard.FieldEmail))
}

func TestAbookRewriteKeepsUnmappedFields(t *testing.T) {
	dir, path := writeAddressbook(t, `[format]
program=abook
version=0.6.0pre2

[0]
name=Jane Doe
email=jane@example.org
custom1=keep me
groups=friends
`)
	a := New(path, dir)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, "Ada Lovelace")
	card.AddValue(vcard.FieldEmail, "ada@example.org")
	_, err := a.Put(".abook", &storage.Object{Card: card})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "custom1=keep me")
	assert.Contains(t, out, "groups=friends")
	assert.Contains(t, out, "version=0.6.0pre2")
	assert.Contains(t, out, "name=Ada Lovelace")
}

func TestAbookReplaceKeepsUnmappedFields(t *testing.T) {
	dir, path := writeAddressbook(t, `[format]
program=abook
version=0.6.1

[0]
name=Jane Doe
email=jane@example.org
custom2=notebook page 12
`)
	a := New(path, dir)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, "Jane Doe")
	card.AddValue(vcard.FieldEmail, "jane.doe@new.example")

	uid, err := a.Put(".abook", &storage.Object{ID: nameUID("Jane Doe"), Card: card})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom2=notebook page 12")

	obj, err := a.Get(".abook", uid)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@new.example", obj.Card.Value(vcard.FieldEmail))
}

func TestAbookPutRejectsMissingCard(t *testing.T) {
	dir, path := writeAddressbook(t, sampleAddressbook)
	a := New(path, dir)

	_, err := a.Put(".abook", &storage.Object{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestAbookRemove(t *testing.T) {
	dir, path := writeAddressbook(t, sampleAddressbook)
	a := New(path, dir)

	require.NoError(t, a.Remove(".abook", nameUID("John Smith")))

	uids, err := a.UIDs(".abook")
	require.NoError(t, err)
	assert.Equal(t, []string{nameUID("Jane Doe")}, uids)

	assert.ErrorIs(t, a.Remove(".abook", nameUID("John Smith")), storage.ErrNotFound)
}

func TestAbookMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := New(filepath.Join(dir, ".abook"), dir)

	uids, err := a.UIDs(".abook")
	require.NoError(t, err)
	assert.Empty(t, uids)

	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, "First Contact")
	_, err = a.Put(".abook", &storage.Object{Card: card})
	require.NoError(t, err)

	uids, err = a.UIDs(".abook")
	require.NoError(t, err)
	assert.Len(t, uids, 1)
}

func TestAbookSkipsNamelessSections(t *testing.T) {
	dir, path := writeAddressbook(t, `[format]
program=abook

[0]
email=ghost@example.org

[1]
name=Real Person
`)

	a := New(path, dir)
	uids, err := a.UIDs(".abook")
	require.NoError(t, err)
	assert.Equal(t, []string{nameUID("Real Person")}, uids)
}
