package config

import "os"

// CompletionModels defines which generation models to use for each wizard call
type CompletionModels struct {
	// StageQuestions is for stage-question generation (user is waiting)
	StageQuestions string `json:"stageQuestions"`

	// InterimAnalysis is for the mid-wizard synthesis of stage-1 answers
	InterimAnalysis string `json:"interimAnalysis"`

	// Implications is for the implications preview after stage 2
	Implications string `json:"implications"`

	// Finalize is for the terminal concept draft (quality over speed)
	Finalize string `json:"finalize"`
}

// AIConfig holds all completion-provider configuration
type AIConfig struct {
	APIKey    string           `json:"-"` // Never serialize
	BaseURL   string           `json:"baseUrl"`
	Models    CompletionModels `json:"models"`
	TimeoutMS int              `json:"timeoutMs"`
}

// DefaultAIConfig returns the default completion-provider configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		Models: CompletionModels{
			// Fast models while the wizard is blocked on a response
			StageQuestions:  getEnvOrDefault("COMPLETION_MODEL_QUESTIONS", "gemini-2.0-flash"),
			InterimAnalysis: getEnvOrDefault("COMPLETION_MODEL_INTERIM", "gemini-2.0-flash"),
			Implications:    getEnvOrDefault("COMPLETION_MODEL_IMPLICATIONS", "gemini-2.0-flash"),

			// Finalize can afford a slower model
			Finalize: getEnvOrDefault("COMPLETION_MODEL_FINALIZE", "gemini-2.5-pro"),
		},
		TimeoutMS: 60000,
	}
}

// IsEnabled returns true if the completion API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full endpoint for a given model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
