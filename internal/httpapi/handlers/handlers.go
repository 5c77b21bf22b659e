package handlers

import (
	"time"

	"github.com/google/uuid"

	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

type Deps struct {
	Store ports.Store
	Queue ports.JobQueue
	SP    ports.StorageProvider
	Log   *logger.Logger

	MaxScriptLength int
	ImageCount      int

	// NewID and Now are replaced in tests.
	NewID func() string
	Now   func() time.Time
}

type Handler struct {
	store ports.Store
	queue ports.JobQueue
	sp    ports.StorageProvider
	log   *logger.Logger

	maxScriptLength int
	imageCount      int

	newID func() string
	now   func() time.Time
}

func New(d Deps) *Handler {
	h := &Handler{
		store:           d.Store,
		queue:           d.Queue,
		sp:              d.SP,
		log:             d.Log,
		maxScriptLength: d.MaxScriptLength,
		imageCount:      d.ImageCount,
		newID:           d.NewID,
		now:             d.Now,
	}
	if h.log == nil {
		h.log = logger.NewDefault()
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}
