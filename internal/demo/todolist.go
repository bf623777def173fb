package demo

import (
	"context"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/lib/validation"
)

// Todo is one entry of a TodoList.
type Todo struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// TodoAddedEvent is dispatched on the window after a todo is added.
const TodoAddedEvent = "todo-added"

// TodoList keeps its todos in component state.
type TodoList struct {
	livecmp.Base
	Todos   []Todo
	NewTodo string
}

// NewTodoList creates a TodoList.
func NewTodoList() livecmp.Component {
	c := &TodoList{Todos: []Todo{}}
	c.Action("add", livecmp.Bind0(c.add))
	c.Action("toggle", livecmp.Bind1(c.toggle))
	c.Action("delete", livecmp.Bind1(c.remove))
	c.Computed("remaining", func() any { return c.remaining() })
	return c
}

func (c *TodoList) Fields() []livecmp.Field {
	return []livecmp.Field{
		livecmp.Value("todos", &c.Todos),
		livecmp.Value("newTodo", &c.NewTodo),
	}
}

func (c *TodoList) add(ctx context.Context) error {
	if err := c.Validate(validation.Rules{"newTodo": "required|max:120"}); err != nil {
		return err
	}
	todo := Todo{ID: c.nextID(), Text: strings.TrimSpace(c.NewTodo)}
	c.Todos = append(c.Todos, todo)
	c.Reset("newTodo")
	c.Dispatch(TodoAddedEvent, map[string]any{"id": todo.ID, "count": len(c.Todos)})
	return nil
}

// nextID is one past the highest id in the list, so ids stay unique after
// deletes.
func (c *TodoList) nextID() int {
	id := 0
	for _, t := range c.Todos {
		if t.ID > id {
			id = t.ID
		}
	}
	return id + 1
}

func (c *TodoList) toggle(ctx context.Context, id int) error {
	for i := range c.Todos {
		if c.Todos[i].ID == id {
			c.Todos[i].Done = !c.Todos[i].Done
		}
	}
	return nil
}

func (c *TodoList) remove(ctx context.Context, id int) error {
	kept := c.Todos[:0]
	for _, t := range c.Todos {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	c.Todos = kept
	return nil
}

func (c *TodoList) remaining() int {
	n := 0
	for _, t := range c.Todos {
		if !t.Done {
			n++
		}
	}
	return n
}

func (c *TodoList) Render(ctx context.Context) (livecmp.Node, error) {
	return livecmp.Templ(todoListView(c)), nil
}

func todoAttrs(t Todo) templ.Attributes {
	class := "todo"
	if t.Done {
		class += " done"
	}
	return templ.Attributes{"class": class, "data-id": strconv.Itoa(t.ID)}
}
