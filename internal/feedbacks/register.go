package feedbacks

import "github.com/mattjoyce/feedbackd/internal/plugin"

// RegisterBuiltins adds the compiled-in feedbacks to reg.
func RegisterBuiltins(reg *plugin.Registry) error {
	builtins := []struct {
		name, desc string
		factory    plugin.Factory
	}{
		{"noop", "Does nothing; the controller default", func() (plugin.Plugin, error) { return plugin.NewNoop(), nil }},
		{"thermometer", "Neurofeedback level thermometer", func() (plugin.Plugin, error) { return NewThermometer(), nil }},
		{"alphaburst", "Trial-type driven speller", func() (plugin.Plugin, error) { return NewAlphaBurst(), nil }},
	}
	for _, b := range builtins {
		if err := reg.Register(b.name, b.desc, b.factory); err != nil {
			return err
		}
	}
	return nil
}
