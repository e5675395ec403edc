package storage

import "racetune/internal/model"

func sampleRun(id, createdAt string) model.RunRecord {
	return Stamp(model.RunRecord{
		ID:           id,
		CreatedAtUTC: createdAt,
		Seed:         42,
		Track: model.NewTrack(
			model.Segment{Curvature: 0.1, Length: 100},
			model.Segment{Curvature: 0.8, Length: 60},
		),
		Population:  10,
		Generations: 3,
		Controller:  model.Controller{Aggression: 0.7, Caution: 0.2, OvertakePropensity: 0.5},
		Line:        []int{2, 0},
		LapTime:     4.25,
		Fitness:     -4.25,
	})
}
