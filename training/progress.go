package training

import (
	"context"
	"math"

	"github.com/zeu5/hospitalbot-rl/monitor"
	"github.com/zeu5/hospitalbot-rl/rl"
)

// progressReportEvery steps between two updates of the tracker
const progressReportEvery = 1000

// progressCallback reports timesteps and evaluation results to the tracker
type progressCallback struct {
	tracker   *monitor.Tracker
	eval      *rl.EvalCallback
	model     rl.Model
	lastEvals int
	calls     int
}

var _ rl.Callback = &progressCallback{}

func (p *progressCallback) Init(model rl.Model) error {
	p.model = model
	p.report()
	return nil
}

func (p *progressCallback) OnStep(context.Context) (bool, error) {
	p.calls++
	if p.calls%progressReportEvery == 0 || len(p.eval.Evaluations) != p.lastEvals {
		p.report()
	}
	return true, nil
}

func (p *progressCallback) OnTrainingEnd() {
	p.report()
}

func (p *progressCallback) report() {
	if p.tracker == nil {
		return
	}
	p.tracker.SetTimesteps(p.model.NumTimesteps())
	p.lastEvals = len(p.eval.Evaluations)
	if !math.IsInf(p.eval.BestMeanReward, -1) {
		p.tracker.SetEvaluation(p.eval.LastMeanReward, p.eval.BestMeanReward)
	}
}
