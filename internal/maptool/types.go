// Package maptool bridges the internal campaign model to a remote MapTool
// virtual-tabletop server.
package maptool

import "github.com/NNNvD/DMA/internal/domain"

// Token is a map token as the MapTool server represents it.
type Token struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	Notes         string   `json:"notes,omitempty"`
	GMNotes       string   `json:"gm_notes,omitempty"`
	Layer         string   `json:"layer,omitempty"`
	LightRadius   *float64 `json:"light_radius,omitempty"`
	VisionEnabled bool     `json:"vision_enabled"`
}

// Map is a map as the MapTool server represents it.
type Map struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Tokens     []Token `json:"tokens"`
	FogState   string  `json:"fog_state,omitempty"`
	LightState string  `json:"light_state,omitempty"`
}

// TokenUpdate is a partial token update. Nil fields are absent from the
// outbound payload so they never overwrite remote state.
type TokenUpdate struct {
	TokenID string   `json:"token_id"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Note    *string  `json:"note,omitempty"`
	GMNote  *string  `json:"gm_note,omitempty"`
}

// Payload builds the outbound PATCH body, emitting only present fields and
// mapping internal field names to the MapTool wire names.
func (u TokenUpdate) Payload() map[string]any {
	payload := map[string]any{}
	if u.X != nil {
		payload["x"] = *u.X
	}
	if u.Y != nil {
		payload["y"] = *u.Y
	}
	if u.Note != nil {
		payload["notes"] = *u.Note
	}
	if u.GMNote != nil {
		payload["gm_notes"] = *u.GMNote
	}
	return payload
}

// FogUpdate adjusts fog of war on a map.
type FogUpdate struct {
	Shape       string      `json:"shape"`
	Coordinates [][]float64 `json:"coordinates"`
}

// LightUpdate adjusts global lighting on a map.
type LightUpdate struct {
	Mode      string   `json:"mode"`
	Intensity *float64 `json:"intensity,omitempty"`
}

// ToCampaignToken translates a MapTool token into the internal campaign
// shape. Light radius and vision are intentionally dropped; the campaign
// model does not track them.
func ToCampaignToken(t Token) domain.CampaignToken {
	return domain.CampaignToken{
		TokenID: t.ID,
		Label:   t.Name,
		X:       t.X,
		Y:       t.Y,
		Note:    t.Notes,
		GMNote:  t.GMNotes,
		Layer:   t.Layer,
	}
}

// ToCampaignMap translates a MapTool map into the internal campaign shape,
// preserving token order.
func ToCampaignMap(m Map) domain.CampaignMapState {
	tokens := make([]domain.CampaignToken, len(m.Tokens))
	for i, t := range m.Tokens {
		tokens[i] = ToCampaignToken(t)
	}
	return domain.CampaignMapState{
		MapID:      m.ID,
		Name:       m.Name,
		Tokens:     tokens,
		FogState:   m.FogState,
		LightState: m.LightState,
	}
}
