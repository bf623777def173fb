package demo

import (
	"context"
	"errors"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/lib/validation"
)

// SessionUserKey holds the signed-in user's name in the session.
const SessionUserKey = "user"

// Login signs a user in and navigates to the dashboard.
type Login struct {
	livecmp.Base
	users UserStore
	home  string

	Email    string
	Password string
}

// NewLogin returns a factory for Login components. Signed-in users are
// sent to home.
func NewLogin(users UserStore, home string) livecmp.Factory {
	return func() livecmp.Component {
		c := &Login{users: users, home: home}
		c.Action("login", livecmp.Bind0(c.login))
		c.SetTitle("Sign in")
		return c
	}
}

func (c *Login) Fields() []livecmp.Field {
	return []livecmp.Field{
		livecmp.Value("email", &c.Email),
		livecmp.Value("password", &c.Password),
	}
}

// Mount skips the form for users who are already signed in.
func (c *Login) Mount(ctx context.Context, params map[string]any) {
	if _, ok := livecmp.SessionFrom(ctx).Get(SessionUserKey); ok {
		c.Redirect(c.home)
	}
}

func (c *Login) login(ctx context.Context) error {
	err := c.Validate(validation.Rules{"email": "required|email", "password": "required"})
	if err != nil {
		return err
	}
	name, err := c.users.Authenticate(ctx, c.Email, c.Password)
	if err != nil {
		return err
	}
	livecmp.SessionFrom(ctx).Set(SessionUserKey, name)
	c.Navigate(c.home)
	return nil
}

// Exception reports bad credentials on the form and clears the password.
func (c *Login) Exception(ctx context.Context, err error, stop *bool) {
	if errors.Is(err, ErrInvalidCredentials) {
		c.AddError("email", "These credentials do not match our records.")
		c.Reset("password")
		*stop = true
	}
}

func (c *Login) Render(ctx context.Context) (livecmp.Node, error) {
	return livecmp.Templ(loginView(c)), nil
}
