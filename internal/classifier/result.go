package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Prediction is one label with its softmax probability.
type Prediction struct {
	Label       string
	Probability float64
}

// Result holds at most TopK predictions in descending probability order.
// Its JSON form is an object whose keys keep that order.
type Result []Prediction

// Top returns the highest ranked prediction.
func (r Result) Top() (Prediction, bool) {
	if len(r) == 0 {
		return Prediction{}, false
	}
	return r[0], true
}

// Labels returns the labels in rank order.
func (r Result) Labels() []string {
	labels := make([]string, len(r))
	for i, p := range r {
		labels[i] = p.Label
	}
	return labels
}

func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Probability)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("classification result must be a JSON object, got %v", tok)
	}

	out := Result{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var p float64
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("probability for %q: %w", label, err)
		}
		out = append(out, Prediction{Label: label, Probability: p})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}
