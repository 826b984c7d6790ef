package domain

// CampaignToken is the internal normalized representation of a map token.
type CampaignToken struct {
	TokenID string  `json:"token_id"`
	Label   string  `json:"label"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Note    string  `json:"note,omitempty"`
	GMNote  string  `json:"gm_note,omitempty"`
	Layer   string  `json:"layer,omitempty"`
}

// CampaignMapState is the internal normalized snapshot of a remote map.
// Token order matches the remote map's token order.
type CampaignMapState struct {
	MapID      string          `json:"map_id"`
	Name       string          `json:"name"`
	Tokens     []CampaignToken `json:"tokens"`
	FogState   string          `json:"fog_state,omitempty"`
	LightState string          `json:"light_state,omitempty"`
}
