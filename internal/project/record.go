// Package project persists workspace snapshots as an append-only list of
// project records, packages a workspace as a ZIP archive, and imports a
// project back from a directory on disk.
package project

import (
	"time"

	"github.com/conneroisu/codepad/internal/sound"
	"github.com/conneroisu/codepad/internal/workspace"
)

// DefaultName is used when a project is saved without a name.
const DefaultName = "Code Editor Project"

// Record is one saved project. Timestamp is milliseconds since the epoch.
type Record struct {
	Name        string   `json:"name"`
	HTML        string   `json:"html"`
	CSS         string   `json:"css"`
	SCSS        string   `json:"scss"`
	JavaScript  string   `json:"javascript"`
	TypeScript  string   `json:"typescript"`
	Libraries   []string `json:"libraries"`
	Theme       string   `json:"theme"`
	FontSize    int      `json:"fontSize"`
	FontFamily  string   `json:"fontFamily"`
	SoundType   string   `json:"soundType"`
	SoundVolume float64  `json:"soundVolume"`
	Timestamp   int64    `json:"timestamp"`
}

// FromSnapshot builds a record for snap saved at now.
func FromSnapshot(name string, snap workspace.Snapshot, now time.Time) Record {
	if name == "" {
		name = DefaultName
	}
	libs := snap.Libraries
	if libs == nil {
		libs = []string{}
	}
	return Record{
		Name:        name,
		HTML:        snap.Document.HTML,
		CSS:         snap.Document.CSS,
		SCSS:        snap.Document.SCSS,
		JavaScript:  snap.Document.JavaScript,
		TypeScript:  snap.Document.TypeScript,
		Libraries:   libs,
		Theme:       snap.Settings.Theme,
		FontSize:    snap.Settings.FontSize,
		FontFamily:  snap.Settings.FontFamily,
		SoundType:   string(snap.Settings.Sound.Kind),
		SoundVolume: snap.Settings.Sound.Volume,
		Timestamp:   now.UnixMilli(),
	}
}

// Snapshot converts the record back into workspace state. Mute is not
// persisted; the returned settings are unmuted and callers that track a
// current mute carry it over.
func (r Record) Snapshot() workspace.Snapshot {
	return workspace.Snapshot{
		Document: workspace.Document{
			HTML:       r.HTML,
			CSS:        r.CSS,
			SCSS:       r.SCSS,
			JavaScript: r.JavaScript,
			TypeScript: r.TypeScript,
		},
		Libraries: append([]string{}, r.Libraries...),
		Settings: workspace.Settings{
			Theme:      r.Theme,
			FontSize:   r.FontSize,
			FontFamily: r.FontFamily,
			Sound: sound.Settings{
				Kind:   sound.Kind(r.SoundType),
				Volume: r.SoundVolume,
			},
		},
	}
}

// SavedAt returns the record timestamp as a time.
func (r Record) SavedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}
