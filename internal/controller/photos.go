package controller

import (
	"time"

	"github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/progress"
)

// Slot names a photo slot.
type Slot string

const (
	SlotCurrent     Slot = "current"
	SlotDestination Slot = "destination"
)

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotCurrent, SlotDestination:
		return Slot(s), nil
	}
	return "", errors.Newf("unknown photo slot %q", s).
		Component("controller").
		Category(errors.CategoryValidation).
		Build()
}

func (s Slot) index() int {
	if s == SlotDestination {
		return 1
	}
	return 0
}

const noImageLabel = "No image selected"

// ErrGenerateNotAllowed is returned by Generate until both photos are selected.
var ErrGenerateNotAllowed = errors.NewStd("Please select images for both current location and target location first!")

type photoSlot struct {
	selected bool
	name     string
}

func (p photoSlot) label() string {
	if !p.selected {
		return noImageLabel
	}
	return "Selected: " + p.name
}

// SelectPhoto marks slot as holding the photo called name.
func (c *Controller) SelectPhoto(slot Slot, name string) error {
	if _, err := ParseSlot(string(slot)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photos[slot.index()] = photoSlot{selected: true, name: name}
	c.publishPhotos()
	return nil
}

// ClearPhoto empties slot.
func (c *Controller) ClearPhoto(slot Slot) error {
	if _, err := ParseSlot(string(slot)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photos[slot.index()] = photoSlot{}
	c.publishPhotos()
	return nil
}

// CanGenerate reports whether both photos are selected.
func (c *Controller) CanGenerate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canGenerate()
}

func (c *Controller) canGenerate() bool {
	return c.photos[0].selected && c.photos[1].selected
}

// Generate reveals the output region and re-runs setup for the current mode.
// Once that has settled the output region is scrolled into view.
func (c *Controller) Generate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.canGenerate() {
		return errors.New(ErrGenerateNotAllowed).
			Component("controller").
			Category(errors.CategoryValidation).
			Build()
	}

	c.generateVisible = false
	c.outputVisible = true
	c.publishPhotos()

	if c.mode == ModeStandard {
		for i, target := range c.standardTargets() {
			s := c.slots[i]
			if !target.IsZero() && s.p.Snapshot().Source.Equal(target) && !s.tracker.Ready() {
				s.view.Show(progress.VariantFile, false)
			}
		}
	}

	c.settleWaiters = append(c.settleWaiters, func() {
		c.publish(events.ScrollRequested{Region: OutputRegion, At: time.Now()})
	})
	c.refreshRequested = true
	c.log.Info("generate requested", logger.String("mode", c.mode.String()))
	c.applyDesired()
	return nil
}

func (c *Controller) publishPhotos() {
	c.publish(events.PhotoSlotsChanged{
		CurrentSelected:     c.photos[0].selected,
		CurrentLabel:        c.photos[0].label(),
		DestinationSelected: c.photos[1].selected,
		DestinationLabel:    c.photos[1].label(),
		CanGenerate:         c.canGenerate(),
		GenerateVisible:     c.generateVisible,
		OutputVisible:       c.outputVisible,
		At:                  time.Now(),
	})
}
