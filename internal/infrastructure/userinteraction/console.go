package userinteraction

import (
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleSpeaker prints spoken output to the terminal in place of a TTS
// engine. High-priority utterances are rendered so they stand out from
// ordinary narration.
type ConsoleSpeaker struct {
	mu sync.Mutex

	normal *color.Color
	urgent *color.Color
	label  *color.Color
}

func NewConsoleSpeaker() *ConsoleSpeaker {
	return &ConsoleSpeaker{
		normal: color.New(color.FgGreen),
		urgent: color.New(color.FgRed, color.Bold),
		label:  color.New(color.Faint),
	}
}

func (s *ConsoleSpeaker) Say(text string, highPriority bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if highPriority {
		s.label.Print("[speak!] ")
		s.urgent.Println(text)
		return
	}
	s.label.Print("[speak] ")
	s.normal.Println(text)
}
