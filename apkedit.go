// Package apkedit is the library surface: open an APK, queue edits against
// its manifest and ZIP payload, and save a new APK. It is thin glue over
// zipfile.Archive/Editor and manifest.Manifest — no format logic lives here.
package apkedit

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-apkedit/apkedit/manifest"
	"github.com/go-apkedit/apkedit/zipfile"
)

const manifestEntryName = "AndroidManifest.xml"

// saveAlignment is the Stored-entry data alignment Save enforces, matching
// Android's own zipalign default.
const saveAlignment = 4

// ApkFile is an APK opened for editing: a parsed ZIP archive plus an edit
// plan accumulated against it.
type ApkFile struct {
	archive  *zipfile.Archive
	editor   *zipfile.Editor
	dexCount int
}

// Open parses data as a ZIP archive and counts its existing classesN.dex
// entries, so AddDex can pick the next free name.
func Open(data []byte) (*ApkFile, error) {
	archive, err := zipfile.Parse(data)
	if err != nil {
		return nil, err
	}

	dexCount := 0
	for i := 0; i < archive.FileCount(); i++ {
		entry, ok := archive.GetEntry(i)
		if !ok {
			continue
		}
		if strings.HasPrefix(entry.Name, "classes") && strings.HasSuffix(entry.Name, ".dex") {
			dexCount++
		}
	}

	return &ApkFile{
		archive:  archive,
		editor:   zipfile.NewEditor(archive),
		dexCount: dexCount,
	}, nil
}

// AddDex appends data as a new classesN.dex entry, DEFLATEd, where N
// continues from however many classes*.dex entries the source archive
// already had. Returns the name chosen.
func (a *ApkFile) AddDex(data []byte) string {
	name := "classes" + strconv.Itoa(a.dexCount) + ".dex"
	a.dexCount++
	a.editor.Append(name, data, zipfile.Deflated)
	return name
}

// Manifest returns the decompressed bytes of AndroidManifest.xml from the
// source archive.
func (a *ApkFile) Manifest() ([]byte, error) {
	return a.archive.GetUncompressedBytes(manifestEntryName)
}

// DecodeManifest parses AndroidManifest.xml into an editable manifest.Manifest.
func (a *ApkFile) DecodeManifest() (*manifest.Manifest, error) {
	raw, err := a.Manifest()
	if err != nil {
		return nil, err
	}
	return manifest.Parse(raw)
}

// SetManifest replaces AndroidManifest.xml's payload with data.
func (a *ApkFile) SetManifest(data []byte) {
	a.editor.Edit(manifestEntryName, data)
}

// AddAssets appends data as assets/name, DEFLATEd.
func (a *ApkFile) AddAssets(name string, data []byte) {
	a.editor.Append("assets/"+name, data, zipfile.Deflated)
}

// AddAssetsReader drains r and appends its content as assets/name, DEFLATEd.
func (a *ApkFile) AddAssetsReader(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("apkedit: read assets %q: %w", name, err)
	}
	a.editor.Append("assets/"+name, data, zipfile.Deflated)
	return nil
}

// AddFile appends data as a new entry at path, using method.
func (a *ApkFile) AddFile(path string, data []byte, method zipfile.Method) {
	a.editor.Append(path, data, method)
}

// EditFile replaces the payload of the existing entry at path. Returns
// false if path is not present in the source archive.
func (a *ApkFile) EditFile(path string, data []byte) bool {
	return a.editor.Edit(path, data)
}

// RemoveFile omits the entry at path from the saved output. Returns false
// if path is not present in the source archive.
func (a *ApkFile) RemoveFile(path string) bool {
	return a.editor.Remove(path)
}

// Save writes the edited archive to w, with Stored entries realigned to a
// 4-byte boundary.
func (a *ApkFile) Save(w io.Writer) error {
	return a.editor.Finish(w, saveAlignment)
}
