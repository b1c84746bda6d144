package model

// Question is a multiple-choice question. CorrectOption never leaves the server.
type Question struct {
	ID            int64  `json:"id" yaml:"-"`
	Role          string `json:"-" yaml:"role"`
	Level         string `json:"-" yaml:"level"`
	Text          string `json:"question" yaml:"question"`
	OptionA       string `json:"option_a" yaml:"option_a"`
	OptionB       string `json:"option_b" yaml:"option_b"`
	OptionC       string `json:"option_c" yaml:"option_c"`
	OptionD       string `json:"option_d" yaml:"option_d"`
	CorrectOption string `json:"-" yaml:"correct_option"`
}
