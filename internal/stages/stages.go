// Package stages models the advanced transcription pipeline's stage map.
//
// The set of stage keys is closed. Merge always returns an entry for every
// key, so callers can index the result without existence checks.
package stages

// Key identifies one advanced pipeline stage.
type Key string

const (
	InitialTranscription Key = "initialTranscription"
	TopicAnalysis        Key = "topicAnalysis"
	DictionaryCreation   Key = "dictionaryCreation"
	FinalTranscription   Key = "finalTranscription"
)

// Status is the lifecycle state of a single stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether the status ends a stage for the current run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// State is the displayed state of one stage.
type State struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	Result      string `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Update is a sparse stage change. Nil fields keep the current value.
type Update struct {
	Name        *string
	Description *string
	Status      *Status
	Result      *string
	Error       *string
}

// Map holds one State per Key.
type Map map[Key]State

type definition struct {
	key         Key
	name        string
	description string
}

var definitions = [...]definition{
	{InitialTranscription, "Initial Transcription", "Fast first-pass transcript of the audio"},
	{TopicAnalysis, "Topic Analysis", "Identify the subject matter and key terminology"},
	{DictionaryCreation, "Dictionary Creation", "Build a domain vocabulary for accurate spelling"},
	{FinalTranscription, "Final Transcription", "Generate subtitles refined with the dictionary"},
}

// Keys returns the stage keys in execution order.
func Keys() []Key {
	keys := make([]Key, len(definitions))
	for i, def := range definitions {
		keys[i] = def.key
	}
	return keys
}

// Valid reports whether k is one of the known stage keys.
func (k Key) Valid() bool {
	for _, def := range definitions {
		if def.key == k {
			return true
		}
	}
	return false
}

// Defaults returns a fresh map with every stage pending.
func Defaults() Map {
	m := make(Map, len(definitions))
	for _, def := range definitions {
		m[def.key] = State{
			Name:        def.name,
			Description: def.description,
			Status:      StatusPending,
		}
	}
	return m
}

// Merge overlays the supplied updates onto the default map. Keys without an
// update keep their default state, and unknown keys are ignored.
func Merge(actual map[Key]Update) Map {
	merged := Defaults()
	for key, update := range actual {
		current, ok := merged[key]
		if !ok {
			continue
		}
		merged[key] = update.applyTo(current)
	}
	return merged
}

// FromStates merges concrete states, such as ones decoded from storage,
// against the defaults. Empty fields fall back to the default values.
func FromStates(states map[Key]State) Map {
	updates := make(map[Key]Update, len(states))
	for key, state := range states {
		updates[key] = state.asUpdate()
	}
	return Merge(updates)
}

// Apply returns a copy of m with update applied to key. Missing keys are
// filled from the defaults first.
func (m Map) Apply(key Key, update Update) Map {
	out := m.complete()
	current, ok := out[key]
	if !ok {
		return out
	}
	out[key] = update.applyTo(current)
	return out
}

// Clone returns a complete copy of m.
func (m Map) Clone() Map {
	return m.complete()
}

// Ordered returns the stage states in execution order.
func (m Map) Ordered() []State {
	complete := m.complete()
	out := make([]State, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, complete[def.key])
	}
	return out
}

func (m Map) complete() Map {
	out := Defaults()
	for key, state := range m {
		if _, ok := out[key]; ok {
			out[key] = state
		}
	}
	return out
}

func (u Update) applyTo(s State) State {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.Result != nil {
		s.Result = *u.Result
	}
	if u.Error != nil {
		s.Error = *u.Error
	}
	return s
}

func (s State) asUpdate() Update {
	var u Update
	if s.Name != "" {
		u.Name = &s.Name
	}
	if s.Description != "" {
		u.Description = &s.Description
	}
	if s.Status != "" {
		u.Status = &s.Status
	}
	if s.Result != "" {
		u.Result = &s.Result
	}
	if s.Error != "" {
		u.Error = &s.Error
	}
	return u
}

// Processing marks a stage as started.
func Processing() Update {
	status := StatusProcessing
	return Update{Status: &status}
}

// Completed marks a stage as finished with result.
func Completed(result string) Update {
	status := StatusCompleted
	return Update{Status: &status, Result: &result}
}

// Failed marks a stage as failed with message.
func Failed(message string) Update {
	status := StatusError
	return Update{Status: &status, Error: &message}
}
