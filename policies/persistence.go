package policies

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/types"
	"github.com/zeu5/hospitalbot-rl/util"
)

const ModelExt = ".json"

var ErrIncompatibleEnv = errors.New("saved model does not match the environment spaces")

type savedModel struct {
	Algorithm       Algorithm `json:"algorithm"`
	Params          Params    `json:"params"`
	NumTimesteps    int       `json:"num_timesteps"`
	ObservationKeys []string  `json:"observation_keys"`
	ObservationDims []int     `json:"observation_dims"`
	ActionDims      int       `json:"action_dims"`
	Theta           []float64 `json:"theta"`
}

// ModelPath appends the model extension when missing
func ModelPath(p string) string {
	if strings.HasSuffix(p, ModelExt) {
		return p
	}
	return p + ModelExt
}

// Save writes the model to path (extension added when missing)
func (m *ActorCritic) Save(path string) error {
	keys := m.obsSpace.Keys()
	dims := make([]int, len(keys))
	for i, k := range keys {
		dims[i] = m.obsSpace.Spaces[k].Dims()
	}
	bs, err := json.Marshal(&savedModel{
		Algorithm:       m.algo,
		Params:          m.params,
		NumTimesteps:    m.numTimesteps,
		ObservationKeys: keys,
		ObservationDims: dims,
		ActionDims:      m.layout.actDim,
		Theta:           m.theta,
	})
	if err != nil {
		return errors.Wrap(err, "encoding model")
	}
	p := ModelPath(path)
	if err := util.EnsureParent(p); err != nil {
		return err
	}
	if err := os.WriteFile(p, bs, 0644); err != nil {
		return errors.Wrapf(err, "writing model %s", p)
	}
	return nil
}

// Load reads a saved model and binds it to env, the spaces of env must
// match the ones the model was trained on
func Load(path string, env types.Environment, options Options) (*ActorCritic, error) {
	p := path
	if _, err := os.Stat(p); err != nil {
		p = ModelPath(path)
	}
	bs, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model %s", path)
	}
	saved := &savedModel{}
	if err := json.Unmarshal(bs, saved); err != nil {
		return nil, errors.Wrapf(err, "decoding model %s", p)
	}

	m, err := New(saved.Algorithm, env, saved.Params, options)
	if err != nil {
		return nil, err
	}
	keys := m.obsSpace.Keys()
	if len(keys) != len(saved.ObservationKeys) || len(saved.ObservationKeys) != len(saved.ObservationDims) {
		return nil, errors.Wrapf(ErrIncompatibleEnv, "observation keys %v vs %v", saved.ObservationKeys, keys)
	}
	for i, k := range keys {
		if saved.ObservationKeys[i] != k || saved.ObservationDims[i] != m.obsSpace.Spaces[k].Dims() {
			return nil, errors.Wrapf(ErrIncompatibleEnv, "observation component %q", k)
		}
	}
	if saved.ActionDims != m.layout.actDim || len(saved.Theta) != m.layout.size() {
		return nil, errors.Wrapf(ErrIncompatibleEnv, "action dims %d vs %d", saved.ActionDims, m.layout.actDim)
	}
	copy(m.theta, saved.Theta)
	m.numTimesteps = saved.NumTimesteps
	return m, nil
}
