package usecase

import (
	"errors"
	"fmt"

	"github.com/gferro/mediatext/internal/core/domain"
	"github.com/gferro/mediatext/internal/core/ports"
)

// ExtractorRegistry maps every media type to its extractor. Construction
// fails when any media type is left without one, so dispatch never hits a
// missing entry at runtime.
type ExtractorRegistry struct {
	byMedia map[domain.MediaType]ports.Extractor
}

func NewExtractorRegistry(audio, document, image, video ports.Extractor) (*ExtractorRegistry, error) {
	byMedia := map[domain.MediaType]ports.Extractor{
		domain.MediaAudio:    audio,
		domain.MediaDocument: document,
		domain.MediaImage:    image,
		domain.MediaVideo:    video,
	}
	for _, media := range domain.MediaTypes() {
		if byMedia[media] == nil {
			return nil, fmt.Errorf("extractor registry: no extractor for media type %q", media)
		}
	}
	return &ExtractorRegistry{byMedia: byMedia}, nil
}

// For returns the extractor registered for a media type.
func (r *ExtractorRegistry) For(media domain.MediaType) (ports.Extractor, error) {
	extractor, ok := r.byMedia[media]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedMedia, "extractor lookup",
			errors.New(string(media)))
	}
	return extractor, nil
}
