package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/agent"
)

// Step types understood by replay.
const (
	stepClick       = "click"
	stepMove        = "move"
	stepScroll      = "scroll"
	stepFocus       = "focus"
	stepSubmit      = "submit"
	stepMutation    = "mutation"
	stepNavigate    = "navigate"
	stepVisibility  = "visibility"
	stepPerformance = "performance"
	stepEvent       = "event"
	stepGoal        = "goal"
	stepPageView    = "pageview"
)

var (
	errMissingSite     = errors.New("script: site_id is required")
	errUnknownStep     = errors.New("unknown step type")
	errTargetNotFound  = errors.New("target not found")
	errMissingTarget   = errors.New("target selector is required")
	errMissingEntry    = errors.New("performance entry is required")
	errMissingStepName = errors.New("name is required")
)

// Script is a recorded page session: the page, the visitor and what they
// did, in order.
type Script struct {
	SiteID            string             `json:"site_id"`
	DoNotTrack        bool               `json:"do_not_track"`
	HeatmapSampleRate float64            `json:"heatmap_sample_rate"`
	Fingerprint       agent.Fingerprint  `json:"fingerprint"`
	Capabilities      agent.Capabilities `json:"capabilities"`
	Page              ScriptPage         `json:"page"`
	Steps             []Step             `json:"steps"`
}

// ScriptPage is the document the session starts on.
type ScriptPage struct {
	URL            string         `json:"url"`
	Title          string         `json:"title"`
	Referrer       string         `json:"referrer"`
	ViewportWidth  int            `json:"viewport_width"`
	ViewportHeight int            `json:"viewport_height"`
	LoadTimeMs     int            `json:"load_time_ms"`
	Document       *agent.Element `json:"document"`
}

// Step is one host-page event or public API call. AfterMs is the pause
// before it.
type Step struct {
	Type    string `json:"type"`
	AfterMs int    `json:"after_ms"`

	Target  string                  `json:"target,omitempty"`
	X       int                     `json:"x,omitempty"`
	Y       int                     `json:"y,omitempty"`
	Depth   int                     `json:"depth,omitempty"`
	URL     string                  `json:"url,omitempty"`
	Title   string                  `json:"title,omitempty"`
	Visible bool                    `json:"visible,omitempty"`
	Entry   *agent.PerformanceEntry `json:"entry,omitempty"`

	Name     string         `json:"name,omitempty"`
	Category string         `json:"category,omitempty"`
	Label    string         `json:"label,omitempty"`
	Value    float64        `json:"value,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var s Script
	if err = json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if err = s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate links the document tree and checks every step resolves.
func (s *Script) Validate() error {
	if s.SiteID == "" {
		return errMissingSite
	}
	if s.Page.Document == nil {
		s.Page.Document = agent.NewElement("body")
	}
	s.Page.Document.Link()

	for i := range s.Steps {
		if _, err := s.Steps[i].Event(s.Page.Document); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, s.Steps[i].Type, err)
		}
	}
	return nil
}

// AgentPage converts the script page for Tracker.Start.
func (s *Script) AgentPage() agent.Page {
	return agent.Page{
		URL:            s.Page.URL,
		Title:          s.Page.Title,
		Referrer:       s.Page.Referrer,
		ViewportWidth:  s.Page.ViewportWidth,
		ViewportHeight: s.Page.ViewportHeight,
		LoadTime:       time.Duration(s.Page.LoadTimeMs) * time.Millisecond,
		Document:       s.Page.Document,
	}
}

// Delay is the pause before the step runs.
func (st *Step) Delay() time.Duration {
	return time.Duration(st.AfterMs) * time.Millisecond
}

// Event resolves the step against doc. Public API steps (event, goal,
// pageview) have no host-page event and return nil.
func (st *Step) Event(doc *agent.Element) (agent.Event, error) {
	switch st.Type {
	case stepClick:
		target, err := st.resolve(doc)
		if err != nil {
			return nil, err
		}
		return agent.Click{Target: target, X: st.X, Y: st.Y}, nil
	case stepMove:
		return agent.MouseMove{X: st.X, Y: st.Y}, nil
	case stepScroll:
		return agent.Scroll{Depth: st.Depth}, nil
	case stepFocus:
		target, err := st.resolve(doc)
		if err != nil {
			return nil, err
		}
		return agent.FocusIn{Target: target}, nil
	case stepSubmit:
		return agent.Submit{}, nil
	case stepMutation:
		return agent.Mutation{}, nil
	case stepNavigate:
		return agent.Navigate{URL: st.URL, Title: st.Title}, nil
	case stepVisibility:
		return agent.VisibilityChange{Visible: st.Visible}, nil
	case stepPerformance:
		if st.Entry == nil {
			return nil, errMissingEntry
		}
		return *st.Entry, nil
	case stepEvent, stepGoal:
		if st.Name == "" {
			return nil, errMissingStepName
		}
		return nil, nil //nolint:nilnil // public API step
	case stepPageView:
		return nil, nil //nolint:nilnil // public API step
	default:
		return nil, errUnknownStep
	}
}

func (st *Step) resolve(doc *agent.Element) (*agent.Element, error) {
	if st.Target == "" {
		return nil, errMissingTarget
	}
	target := doc.Find(st.Target)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", errTargetNotFound, st.Target)
	}
	return target, nil
}
