// Package manifest drives the axml codec with the high-level operations an
// APK editor needs against AndroidManifest.xml: adding an activity or a
// content provider to the <application> element.
package manifest

import (
	"fmt"

	"github.com/go-apkedit/apkedit/axml"
)

// Manifest wraps a parsed AndroidManifest.xml, remembering the index of its
// <application> child (found by linear scan, since it need not be the first
// child of the root — spec boundary case) and a string-interning Builder
// seeded from the source document.
type Manifest struct {
	doc      *axml.AXML
	builder  *axml.Builder
	appIndex int
	hasApp   bool
}

// Parse parses an AndroidManifest.xml byte buffer and locates its
// <application> element.
func Parse(data []byte) (*Manifest, error) {
	doc, err := axml.Parse(data)
	if err != nil {
		return nil, err
	}

	builder, err := doc.NewBuilder()
	if err != nil {
		return nil, err
	}

	m := &Manifest{doc: doc, builder: builder}
	for i, child := range doc.Root.Children {
		if child.TagName == "application" {
			m.appIndex = i
			m.hasApp = true
			break
		}
	}
	return m, nil
}

// Bytes regenerates the (possibly edited) manifest into a fresh byte buffer.
func (m *Manifest) Bytes() []byte {
	return m.doc.Regenerate(m.builder)
}

// application returns a pointer to the application element so mutations
// append directly into the live tree.
func (m *Manifest) application() (*axml.Element, error) {
	if !m.hasApp {
		return nil, fmt.Errorf("manifest: no <application> element found under <manifest>")
	}
	return &m.doc.Root.Children[m.appIndex], nil
}

// AddActivity appends an <activity android:name="className"/> child to
// <application>.
func (m *Manifest) AddActivity(className string) error {
	app, err := m.application()
	if err != nil {
		return err
	}

	nameIndex := m.builder.Put(className)
	app.AppendChild(axml.Element{
		TagName: "activity",
		Attrs:   []axml.Attribute{axml.NewStringAttr(3, "name", className, nameIndex)},
	})
	return nil
}

// AddProvider appends a <provider android:name="className"
// android:authorities="authorities"/> child to <application>.
func (m *Manifest) AddProvider(className, authorities string) error {
	app, err := m.application()
	if err != nil {
		return err
	}

	nameIndex := m.builder.Put(className)
	authoritiesIndex := m.builder.Put(authorities)
	app.AppendChild(axml.Element{
		TagName: "provider",
		Attrs: []axml.Attribute{
			axml.NewStringAttr(3, "name", className, nameIndex),
			axml.NewStringAttr(5, "authorities", authorities, authoritiesIndex),
		},
	})
	return nil
}
