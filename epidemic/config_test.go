package epidemic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"contagion/models"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When reading a complete definition", t, func() {
		path := writeConfig(t, `
kind: epidemic
def:
  agents: 1000
  initial_infected: 10
  tick_speed: 30
  infection_probability: 0.5
  infection_radius: 3.5
  reinfection_probability: 0
  pixel_size: 2
  recovery_ticks:
    min: 10
    max: 20
  seed: 42
  max_ticks: 500
  history_window: 200
  run_deadline:
    duration: 2m
`)
		cfg, err := FromYaml(path)
		So(err, ShouldBeNil)
		So(cfg.Agents, ShouldEqual, 1000)
		So(cfg.InitialInfected, ShouldEqual, 10)
		So(cfg.TickSpeed, ShouldEqual, 30)
		So(cfg.InfectionProbability, ShouldEqual, 0.5)
		So(cfg.InfectionRadius, ShouldEqual, 3.5)
		So(cfg.ReinfectionProbability, ShouldEqual, 0)
		So(cfg.PixelSize, ShouldEqual, 2)
		So(cfg.RecoveryTicks, ShouldResemble, models.RecoveryRange{Min: 10, Max: 20})
		So(cfg.Seed, ShouldEqual, uint64(42))
		So(cfg.MaxTicks, ShouldEqual, 500)
		So(cfg.HistoryWindow, ShouldEqual, 200)
		So(cfg.RunDeadline["duration"], ShouldEqual, "2m")
	})

	Convey("When keys are omitted they keep their defaults", t, func() {
		path := writeConfig(t, `
kind: epidemic
def:
  agents: 500
`)
		cfg, err := FromYaml(path)
		So(err, ShouldBeNil)
		expected := DefaultConfig()
		expected.Agents = 500
		So(*cfg, ShouldResemble, expected)
	})

	Convey("When the envelope kind is wrong", t, func() {
		path := writeConfig(t, `
kind: gridworld
def:
  agents: 500
`)
		_, err := FromYaml(path)
		So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
	})

	Convey("When a value is out of bounds", t, func() {
		path := writeConfig(t, `
kind: epidemic
def:
  infection_probability: 1.5
`)
		_, err := FromYaml(path)
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})

	Convey("When the file does not exist", t, func() {
		_, err := FromYaml(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestValidate(t *testing.T) {
	Convey("Given the default settings", t, func() {
		cfg := DefaultConfig()

		Convey("They are valid", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		cases := []struct {
			name   string
			mutate func(*Config)
		}{
			{"no agents", func(c *Config) { c.Agents = 0 }},
			{"no initial infection", func(c *Config) { c.InitialInfected = 0 }},
			{"everyone infected", func(c *Config) { c.InitialInfected = c.Agents }},
			{"zero tick speed", func(c *Config) { c.TickSpeed = 0 }},
			{"tick speed 144", func(c *Config) { c.TickSpeed = 144 }},
			{"zero infection chance", func(c *Config) { c.InfectionProbability = 0 }},
			{"zero radius", func(c *Config) { c.InfectionRadius = 0 }},
			{"radius 100", func(c *Config) { c.InfectionRadius = 100 }},
			{"negative reinfection", func(c *Config) { c.ReinfectionProbability = -0.1 }},
			{"pixel size 11", func(c *Config) { c.PixelSize = 11 }},
			{"inverted recovery range", func(c *Config) { c.RecoveryTicks = models.RecoveryRange{Min: 9, Max: 3} }},
			{"instant recovery", func(c *Config) { c.RecoveryTicks = models.RecoveryRange{Min: 0, Max: 3} }},
			{"negative max ticks", func(c *Config) { c.MaxTicks = -1 }},
			{"empty history window", func(c *Config) { c.HistoryWindow = 0 }},
			{"unparseable run deadline", func(c *Config) { c.RunDeadline = map[string]string{"duration": "soon"} }},
		}

		for _, tc := range cases {
			Convey("Rejecting "+tc.name, func() {
				tc.mutate(&cfg)
				So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			})
		}

		Convey("The boundary values are accepted", func() {
			cfg.InfectionProbability = 1
			cfg.ReinfectionProbability = 0
			cfg.PixelSize = 10
			cfg.RecoveryTicks = models.RecoveryRange{Min: 1, Max: 1}
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("The tick interval follows the tick speed", func() {
			cfg.TickSpeed = 50
			So(cfg.TickInterval(), ShouldEqual, 20*time.Millisecond)
		})
	})
}

func TestRunDeadline(t *testing.T) {
	Convey("When no run deadline is set the context only cancels", t, func() {
		cfg := DefaultConfig()
		ctx, cancel, err := cfg.WithRunDeadline(context.Background())
		So(err, ShouldBeNil)
		_, hasDeadline := ctx.Deadline()
		So(hasDeadline, ShouldBeFalse)
		cancel()
		So(ctx.Err(), ShouldEqual, context.Canceled)
	})

	Convey("When a run deadline is set the context expires", t, func() {
		cfg := DefaultConfig()
		cfg.RunDeadline = map[string]string{"duration": "10ms"}
		ctx, cancel, err := cfg.WithRunDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()
		<-ctx.Done()
		So(ctx.Err(), ShouldEqual, context.DeadlineExceeded)
	})

	Convey("When the run deadline does not parse", t, func() {
		cfg := DefaultConfig()
		cfg.RunDeadline = map[string]string{"duration": "forever"}
		_, _, err := cfg.WithRunDeadline(context.Background())
		So(err, ShouldNotBeNil)
	})
}
