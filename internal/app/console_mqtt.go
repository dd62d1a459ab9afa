package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lolzio5/PiTrainer/internal/backend"
	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/logger"
)

// RunConsole prints everything the devices publish until ctx is cancelled.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	l, err := backend.Listen(cfg.MQTT, cfg.MQTT.ClientIDConsole, consoleHandlers(out))
	if err != nil {
		return err
	}
	defer l.Close()

	<-ctx.Done()
	logger.New("console").Infof("shutting down")
	return nil
}

func consoleHandlers(out io.Writer) backend.Handlers {
	return backend.Handlers{
		State: func(device string, s backend.State) {
			fmt.Fprintf(out, "[STATE] %-12s %s\n", device, s)
		},
		Reps: func(rc backend.RepCount) {
			fmt.Fprintf(out, "[REPS ] %-12s %s set %d  rep %3d  at %s\n",
				rc.Device, rc.Exercise, rc.Set, rc.Count, rc.Time.Format(time.TimeOnly))
		},
		Set: func(sr backend.SetResult) {
			r := sr.Report
			fmt.Fprintf(out, "[SET  ] %-12s %s set %d  live=%d scored=%d excluded=%d  %s\n",
				sr.Device, sr.Exercise, sr.Set, sr.LiveCount, len(r.Reps), len(r.Excluded), r.Feedback.Summary())
			for _, text := range []string{r.Feedback.DistanceText, r.Feedback.TimeText, r.Feedback.ShakinessText} {
				fmt.Fprintf(out, "        %s\n", text)
			}
		},
		Workout: func(ws backend.WorkoutSummary) {
			b := ws.Buckets
			fmt.Fprintf(out, "[WORK ] %-12s %d sets %d reps in %s  %s\n",
				ws.Device, ws.Sets, ws.Reps, ws.Ended.Sub(ws.Started).Round(time.Second), ws.Feedback.Summary())
			fmt.Fprintf(out, "        perfect=%d good=%d fair=%d poor=%d\n", b.Perfect, b.Good, b.Fair, b.Poor)
		},
	}
}

// SetState publishes a workout state for device the way the service does:
// an exercise name, "Pseudo Idle" or "Idle".
func SetState(ctx context.Context, cfg *config.Config, device, state string) error {
	client, err := backend.Dial(cfg.MQTT, cfg.MQTT.ClientIDConsole+"-state", device)
	if err != nil {
		return err
	}
	defer client.Close()

	s := backend.ParseState(strings.TrimSpace(state))
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.PublishState(ctx, s); err != nil {
		return err
	}
	logger.New("console").Infof("device %s: state set to %q", device, s)
	return nil
}
