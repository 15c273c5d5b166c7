package mfa

import "strings"

// Prompt is the display text for one required factor.
type Prompt struct {
	Factor string
	Label  string
	Hint   string
	// Enrollment is an otpauth URI to render as a QR code, when the
	// challenge enables an authenticator.
	Enrollment string
}

// Prompts derives the prompts for the current challenge, in server order.
func (c *Controller) Prompts() []Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Prompt, 0, len(c.factors))
	for _, f := range c.factors {
		out = append(out, PromptFor(f.Name, f.Context))
	}
	return out
}

// PromptFor returns the prompt for a factor and its context blob.
func PromptFor(factor, context string) Prompt {
	p := Prompt{Factor: factor}
	switch factor {
	case FactorEmail:
		p.Label = "Email code"
		p.Hint = "A confirmation code was sent to your email"
	case FactorTelegram:
		p.Label = "Telegram code"
		p.Hint = "A confirmation code was sent to your Telegram"
	case FactorOTP:
		p.Label = "Authenticator code"
		p.Hint = "Enter the code from your authenticator app"
		if strings.HasPrefix(context, "otpauth://") {
			p.Enrollment = context
			p.Hint = "Scan the QR code with your authenticator app, then enter the code"
		}
	default:
		p.Label = factor + " code"
		p.Hint = "Enter the " + factor + " code"
	}
	return p
}
