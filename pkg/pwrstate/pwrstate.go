// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pwrstate encodes the SCMI power state parameter used by ARM CSS
// platforms to describe a CPU and its parent power domains in one word.
//
//	31  20 19       16 15      12 11       8 7        4 3         0
//	+-------------------------------------------------------------+
//	| SBZ | Max level |  Level 3 |  Level 2 |  Level 1 |  Level 0 |
//	|     |           |   state  |   state  |   state  |   state  |
//	+-------------------------------------------------------------+
//
// Max level is the highest level with a valid state in the word. Levels
// above it are not described and readers must ignore them.
package pwrstate

import (
	"fmt"
	"strings"
)

// State is the requested or reported state of a single power level.
type State uint8

const (
	Off   State = 0
	On    State = 1
	Sleep State = 2
)

// Valid reports whether s is one of the states the remote side understands.
func (s State) Valid() bool {
	return s == Off || s == On || s == Sleep
}

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case On:
		return "ON"
	case Sleep:
		return "SLEEP"
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

const (
	// LevelWidth is the number of bits holding one level state.
	LevelWidth = 4
	levelMask  = 1<<LevelWidth - 1

	// MaxWordLevel is the highest level slot that fits in a 32-bit word.
	MaxWordLevel = 32/LevelWidth - 1

	// MaxDescribedLevel is the highest level that sits below the max level
	// field and can therefore be described by it.
	MaxDescribedLevel = 3

	MaxLevelShift = 16
	MaxLevelWidth = 4
	maxLevelMask  = 1<<MaxLevelWidth - 1
)

// Word is the bit-packed power state parameter.
type Word uint32

func checkLevel(level uint) {
	if level > MaxWordLevel {
		panic(fmt.Sprintf("power level %d does not fit in a power state word", level))
	}
}

// SetLevel returns w with the state of level replaced by s. Only the
// field width is checked here; whether s makes sense for the level is up
// to the caller.
func (w Word) SetLevel(level uint, s State) Word {
	checkLevel(level)
	if s > levelMask {
		panic(fmt.Sprintf("level state %d does not fit in %d bits", s, LevelWidth))
	}
	shift := LevelWidth * level
	return w&^(levelMask<<shift) | Word(s)<<shift
}

// Level returns the state encoded for level.
func (w Word) Level(level uint) State {
	checkLevel(level)
	return State(w >> (LevelWidth * level) & levelMask)
}

// SetMaxLevel returns w with the max level field replaced by level.
func (w Word) SetMaxLevel(level uint) Word {
	if level > maxLevelMask {
		panic(fmt.Sprintf("max power level %d does not fit in %d bits", level, MaxLevelWidth))
	}
	return w&^(maxLevelMask<<MaxLevelShift) | Word(level)<<MaxLevelShift
}

// MaxLevel returns the highest level described by w.
func (w Word) MaxLevel() uint {
	return uint(w>>MaxLevelShift) & maxLevelMask
}

// New builds a word describing levels 0 to len(states)-1.
func New(states ...State) Word {
	if len(states) == 0 || len(states) > MaxDescribedLevel+1 {
		panic(fmt.Sprintf("a power state word describes 1 to %d levels, got %d", MaxDescribedLevel+1, len(states)))
	}
	var w Word
	for l, s := range states {
		w = w.SetLevel(uint(l), s)
	}
	return w.SetMaxLevel(uint(len(states) - 1))
}

func (w Word) String() string {
	max := w.MaxLevel()
	if max > MaxDescribedLevel {
		return fmt.Sprintf("%#08x (max level %d)", uint32(w), max)
	}
	s := make([]string, 0, max+1)
	for l := uint(0); l <= max; l++ {
		s = append(s, w.Level(l).String())
	}
	return fmt.Sprintf("%#08x [%s]", uint32(w), strings.Join(s, " "))
}
