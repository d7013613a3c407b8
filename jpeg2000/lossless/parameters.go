package lossless

import (
	"github.com/cocosip/go-dicom/pkg/imaging/codec"

	"github.com/cocosip/go-j2k/jpeg2000/t2"
)

var _ codec.Parameters = (*Parameters)(nil)

// Parameters configures lossless encoding through the generic go-dicom
// parameter interface.
type Parameters struct {
	// NumLevels is the wavelet decomposition level count (0-6).
	NumLevels int

	// AllowMCT applies the reversible colour transform on RGB input.
	AllowMCT bool

	// ProgressionOrder selects the packet ordering (0=LRCP .. 4=CPRL).
	ProgressionOrder int

	// NumLayers is the quality layer count.
	NumLayers int

	// TargetRatio is passed to the encoder's rate control: a positive
	// value bounds every layer, the final one included, by the ratio's
	// byte budget, so the final layer is then not lossless; 0 disables
	// rate shaping.
	TargetRatio float64

	extra map[string]interface{}
}

// NewParameters returns the defaults.
func NewParameters() *Parameters {
	return &Parameters{
		NumLevels:        5,
		AllowMCT:         true,
		ProgressionOrder: t2.OrderLRCP,
		NumLayers:        1,
		extra:            make(map[string]interface{}),
	}
}

func extractParameters(parameters codec.Parameters) *Parameters {
	if parameters == nil {
		return NewParameters()
	}
	if p, ok := parameters.(*Parameters); ok {
		return p
	}
	p := NewParameters()
	if v, ok := parameters.GetParameter("numLevels").(int); ok {
		p.NumLevels = v
	}
	if v, ok := parameters.GetParameter("allowMCT").(bool); ok {
		p.AllowMCT = v
	}
	if v, ok := parameters.GetParameter("progressionOrder").(int); ok {
		p.ProgressionOrder = v
	}
	if v, ok := parameters.GetParameter("numLayers").(int); ok {
		p.NumLayers = v
	}
	if v, ok := parameters.GetParameter("targetRatio").(float64); ok {
		p.TargetRatio = v
	}
	return p
}

// GetParameter implements codec.Parameters.
func (p *Parameters) GetParameter(name string) interface{} {
	switch name {
	case "numLevels":
		return p.NumLevels
	case "allowMCT":
		return p.AllowMCT
	case "progressionOrder":
		return p.ProgressionOrder
	case "numLayers":
		return p.NumLayers
	case "targetRatio":
		return p.TargetRatio
	default:
		return p.extra[name]
	}
}

// SetParameter implements codec.Parameters.
func (p *Parameters) SetParameter(name string, value interface{}) {
	switch name {
	case "numLevels":
		if v, ok := value.(int); ok {
			p.NumLevels = v
		}
	case "allowMCT":
		if v, ok := value.(bool); ok {
			p.AllowMCT = v
		}
	case "progressionOrder":
		if v, ok := value.(int); ok {
			p.ProgressionOrder = v
		}
	case "numLayers":
		if v, ok := value.(int); ok {
			p.NumLayers = v
		}
	case "targetRatio":
		switch v := value.(type) {
		case float64:
			p.TargetRatio = v
		case int:
			p.TargetRatio = float64(v)
		}
	default:
		p.extra[name] = value
	}
}

// Validate clamps out-of-range values back to usable defaults.
func (p *Parameters) Validate() error {
	if p.NumLevels < 0 || p.NumLevels > 6 {
		p.NumLevels = 5
	}
	if p.NumLayers < 1 {
		p.NumLayers = 1
	}
	if p.ProgressionOrder < t2.OrderLRCP || p.ProgressionOrder > t2.OrderCPRL {
		p.ProgressionOrder = t2.OrderLRCP
	}
	if p.TargetRatio < 0 {
		p.TargetRatio = 0
	}
	return nil
}

// WithNumLevels sets the decomposition level count.
func (p *Parameters) WithNumLevels(levels int) *Parameters {
	p.NumLevels = levels
	return p
}

// WithNumLayers sets the quality layer count.
func (p *Parameters) WithNumLayers(layers int) *Parameters {
	p.NumLayers = layers
	return p
}

// WithProgression sets the progression order.
func (p *Parameters) WithProgression(order int) *Parameters {
	p.ProgressionOrder = order
	return p
}

// WithAllowMCT toggles the reversible colour transform.
func (p *Parameters) WithAllowMCT(allow bool) *Parameters {
	p.AllowMCT = allow
	return p
}

// WithTargetRatio sets the compression-ratio target.
func (p *Parameters) WithTargetRatio(ratio float64) *Parameters {
	p.TargetRatio = ratio
	return p
}
