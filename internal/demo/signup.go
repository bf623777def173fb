package demo

import (
	"context"
	"errors"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/lib/validation"
)

// SignedUpEvent is dispatched on the window after a successful signup.
const SignedUpEvent = "signed-up"

var signupFields = []struct{ name, label, kind string }{
	{"name", "Name", "text"},
	{"email", "Email", "email"},
	{"password", "Password", "password"},
}

var signupRules = validation.Rules{
	"name":     "required|max:80",
	"email":    "required|email",
	"password": "required|min:8|max:64",
}

// Signup validates a registration form and hands it to the user store.
type Signup struct {
	livecmp.Base
	users UserStore

	Name     string
	Email    string
	Password string
}

// NewSignup returns a factory for Signup components backed by users.
func NewSignup(users UserStore) livecmp.Factory {
	return func() livecmp.Component {
		c := &Signup{users: users}
		c.Action("submit", livecmp.Bind0(c.submit))
		return c
	}
}

func (c *Signup) Fields() []livecmp.Field {
	return []livecmp.Field{
		livecmp.Value("name", &c.Name),
		livecmp.Value("email", &c.Email),
		livecmp.Value("password", &c.Password),
	}
}

func (c *Signup) submit(ctx context.Context) error {
	if err := c.Validate(signupRules); err != nil {
		return err
	}
	if err := c.users.Create(ctx, c.Name, c.Email, c.Password); err != nil {
		return err
	}
	c.Flash(livecmp.FlashSuccess, "Welcome, "+c.Name+"!")
	c.Dispatch(SignedUpEvent, map[string]any{"email": c.Email})
	c.Reset()
	return nil
}

// Exception turns a duplicate address into a field error.
func (c *Signup) Exception(ctx context.Context, err error, stop *bool) {
	if errors.Is(err, ErrEmailTaken) {
		c.AddError("email", "That email is already registered.")
		*stop = true
	}
}

func (c *Signup) Render(ctx context.Context) (livecmp.Node, error) {
	return livecmp.Templ(signupView(c)), nil
}
