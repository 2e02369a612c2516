package stamps

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/s-hosono/stamprally/internal/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrInvalidCatalog = errors.New("invalid stamp catalog")

type catalogFile struct {
	Points []models.StampPoint `yaml:"points"`
}

// LoadCatalog reads stamp points from a YAML file. An empty path loads the
// built-in catalog.
func LoadCatalog(path string) ([]models.StampPoint, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) ([]models.StampPoint, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(doc.Points) == 0 {
		return nil, fmt.Errorf("%w: no stamp points", ErrInvalidCatalog)
	}

	ids := make(map[string]bool, len(doc.Points))
	codes := make(map[string]bool, len(doc.Points))
	for i, p := range doc.Points {
		code := strings.TrimSpace(p.QRCode)
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: point %d has no id", ErrInvalidCatalog, i)
		case code == "":
			return nil, fmt.Errorf("%w: point %s has no qr code", ErrInvalidCatalog, p.ID)
		case ids[p.ID]:
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidCatalog, p.ID)
		case codes[code]:
			return nil, fmt.Errorf("%w: duplicate qr code on point %s", ErrInvalidCatalog, p.ID)
		case p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180:
			return nil, fmt.Errorf("%w: point %s has invalid coordinates", ErrInvalidCatalog, p.ID)
		}
		ids[p.ID] = true
		codes[code] = true
	}
	return doc.Points, nil
}
