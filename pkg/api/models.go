package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type IndexResponse struct {
	Cdr3bs       []string `json:"cdr3bs"`
	Epitopes     []string `json:"epitopes"`
	Epitope      string   `json:"epitope"`
	MaxCdr3b     int      `json:"max_cdr3b"`
	MaxNCdr3bs   int      `json:"max_n_cdr3bs"`
	EpitopeRange string   `json:"epitope_range"`
}

type PredictRequest struct {
	Epitope string `schema:"epitope"`
	Cdr3bs  string `schema:"cdr3bs"`
}

type PredictionResult struct {
	Epitope string `json:"epitope"`
	Cdr3b   string `json:"cdr3b"`
	Label   int    `json:"label"`
}

// ResultGroup is serialized as a two element array: [results, attentions].
// Attentions is null when none of the results in the group were positive.
type ResultGroup struct {
	Cdr3bLen   int
	Results    []PredictionResult
	Attentions []float32
}

func (g ResultGroup) MarshalJSON() ([]byte, error) {
	results := g.Results
	if results == nil {
		results = []PredictionResult{}
	}
	return json.Marshal([]any{results, g.Attentions})
}

func (g *ResultGroup) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("expected [results, attentions], got array of length %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &g.Results); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &g.Attentions)
}

// ResultGroups keeps groups in ascending CDR3b length. It is serialized as an
// object keyed by length so that keys come out in numeric rather than
// lexical order.
type ResultGroups []ResultGroup

func (gs ResultGroups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range gs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(g.Cdr3bLen)))
		buf.WriteByte(':')
		data, err := g.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (gs *ResultGroups) UnmarshalJSON(data []byte) error {
	var raw map[string]ResultGroup
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	groups := make(ResultGroups, 0, len(raw))
	for key, g := range raw {
		n, err := strconv.Atoi(key)
		if err != nil {
			return err
		}
		g.Cdr3bLen = n
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Cdr3bLen < groups[j].Cdr3bLen })
	*gs = groups
	return nil
}

type PredictResponse struct {
	Results ResultGroups `json:"results"`
}

type ChartRequest struct {
	Epitope  string `schema:"epitope"`
	Cdr3bLen int    `schema:"cdr3b_len"`
	Attns    string `schema:"attns"`
}
