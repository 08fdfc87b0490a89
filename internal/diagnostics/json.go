package diagnostics

import (
	"encoding/json"
	"math"
)

type paramJSON struct {
	Name string   `json:"name"`
	Mean float64  `json:"mean"`
	SD   float64  `json:"sd"`
	Q025 float64  `json:"q2.5"`
	Q975 float64  `json:"q97.5"`
	Rhat *float64 `json:"rhat"`
	ESS  *float64 `json:"ess_bulk"`
}

// MarshalJSON writes undefined R-hat and ESS values as null.
func (p Param) MarshalJSON() ([]byte, error) {
	return json.Marshal(paramJSON{
		Name: p.Name, Mean: p.Mean, SD: p.SD, Q025: p.Q025, Q975: p.Q975,
		Rhat: finite(p.Rhat), ESS: finite(p.ESS),
	})
}

func (p *Param) UnmarshalJSON(data []byte) error {
	var raw paramJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Param{
		Name: raw.Name, Mean: raw.Mean, SD: raw.SD, Q025: raw.Q025, Q975: raw.Q975,
		Rhat: orNaN(raw.Rhat), ESS: orNaN(raw.ESS),
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
