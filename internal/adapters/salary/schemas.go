package salary

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
)

// inseeSchema: {"code":"M1805","annee":2025,"tranches":[{"niveau":"debutant",
// "salaire_min":..,"salaire_max":..,"salaire_median":..}]} in euros per year.
type inseeSchema struct{}

type inseePayload struct {
	Tranches []struct {
		Niveau  string `json:"niveau"`
		Min     *int   `json:"salaire_min"`
		Max     *int   `json:"salaire_max"`
		Mediane *int   `json:"salaire_median"`
	} `json:"tranches"`
}

var inseeLevels = map[string]aggregate.Level{
	"debutant": aggregate.LevelJunior,
	"confirme": aggregate.LevelConfirmed,
	"senior":   aggregate.LevelSenior,
}

func (inseeSchema) path(code string) string {
	return "/salaires/" + pathEscape(code)
}

func (inseeSchema) decode(body []byte) (map[aggregate.Level]aggregate.Value, error) {
	var p inseePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode insee payload: %w", err)
	}
	out := make(map[aggregate.Level]aggregate.Value)
	for _, t := range p.Tranches {
		level, ok := inseeLevels[t.Niveau]
		if !ok {
			continue
		}
		v := aggregate.Value{Min: t.Min, Max: t.Max, Median: t.Mediane}
		if !v.IsEmpty() {
			out[level] = v
		}
	}
	return out, nil
}

// apecSchema: {"fourchettes":{"jeune_diplome":{"min":32.5,"max":38},...}}
// in thousands of euros; no median.
type apecSchema struct{}

type apecRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type apecPayload struct {
	Fourchettes map[string]apecRange `json:"fourchettes"`
}

var apecLevels = map[string]aggregate.Level{
	"jeune_diplome": aggregate.LevelJunior,
	"confirme":      aggregate.LevelConfirmed,
	"experimente":   aggregate.LevelSenior,
}

func (apecSchema) path(code string) string {
	return "/remunerations?rome=" + url.QueryEscape(code)
}

func (apecSchema) decode(body []byte) (map[aggregate.Level]aggregate.Value, error) {
	var p apecPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode apec payload: %w", err)
	}
	out := make(map[aggregate.Level]aggregate.Value)
	for key, r := range p.Fourchettes {
		level, ok := apecLevels[key]
		if !ok {
			continue
		}
		v := aggregate.Value{Min: thousands(r.Min), Max: thousands(r.Max)}
		if !v.IsEmpty() {
			out[level] = v
		}
	}
	return out, nil
}

func thousands(k *float64) *int {
	if k == nil {
		return nil
	}
	v := int(math.Round(*k * 1000))
	return &v
}

// genericSchema: {"levels":{"junior":{"min":..,"max":..,"median":..},...}}
// in euros per year, level names as in aggregate.Levels.
type genericSchema struct{}

type genericPayload struct {
	Levels map[string]aggregate.Value `json:"levels"`
}

func (genericSchema) path(code string) string {
	return "/salaries/" + pathEscape(code)
}

func (genericSchema) decode(body []byte) (map[aggregate.Level]aggregate.Value, error) {
	var p genericPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode generic payload: %w", err)
	}
	out := make(map[aggregate.Level]aggregate.Value)
	for key, v := range p.Levels {
		level, err := aggregate.ParseLevel(key)
		if err != nil {
			continue
		}
		if !v.IsEmpty() {
			out[level] = v
		}
	}
	return out, nil
}
