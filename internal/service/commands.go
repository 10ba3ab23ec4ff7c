package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalog/browser/internal/browser"
	"catalog/browser/internal/domain"
	"catalog/browser/internal/urlstate"
)

var (
	ErrQuit         = errors.New("quit")
	errEmptyCommand = errors.New("empty command")
	errPrintAddress = errors.New("address")
	errPrintHelp    = errors.New("help")
)

const usage = `commands:
  show                     reload the current view
  cd <id> | up | root      navigate the tree
  crumb <n>                jump to breadcrumb entry n (0 is the root)
  page <n> | next | prev   change page
  filter key=value ...     status=all|active|inactive featured=all|true|false limit=<n>
  search [text]            search names, empty text clears
  sort <field> [asc|desc]  field is name, createdAt or productCount
  delete <id>              delete a category
  toggle <id>              flip the active flag of a category on this page
  retry | refresh          refetch after a failure or bypassing the cache
  address                  print the shareable address
  quit`

// ParseCommand turns one input line into a browser event.
func ParseCommand(line string) (browser.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errEmptyCommand
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit":
		return nil, ErrQuit
	case "address":
		return nil, errPrintAddress
	case "help", "?":
		return nil, errPrintHelp
	case "show", "load":
		return browser.Load{}, nil
	case "up":
		return browser.Up{}, nil
	case "root":
		return browser.SetParent{}, nil
	case "next":
		return browser.NextPage{}, nil
	case "prev":
		return browser.PrevPage{}, nil
	case "retry":
		return browser.Retry{}, nil
	case "refresh":
		return browser.Refresh{}, nil
	case "cd":
		id, err := single(name, args)
		if err != nil {
			return nil, err
		}
		return browser.SetParent{ID: &id}, nil
	case "crumb":
		n, err := number(name, args)
		if err != nil {
			return nil, err
		}
		return browser.SelectCrumb{Index: n}, nil
	case "page":
		n, err := number(name, args)
		if err != nil {
			return nil, err
		}
		return browser.SetPage{Page: n}, nil
	case "delete":
		id, err := single(name, args)
		if err != nil {
			return nil, err
		}
		return browser.Delete{ID: id}, nil
	case "toggle":
		id, err := single(name, args)
		if err != nil {
			return nil, err
		}
		return browser.ToggleStatus{ID: id}, nil
	case "search":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		return browser.SetFilter{Patch: urlstate.Patch{}.WithSearch(text)}, nil
	case "sort":
		return parseSort(args)
	case "filter":
		return parseFilter(args)
	default:
		return nil, fmt.Errorf("unknown command %q, type help", name)
	}
}

func single(name string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s expects exactly one argument", name)
	}
	return args[0], nil
}

func number(name string, args []string) (int, error) {
	arg, err := single(name, args)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%s expects a number, got %q", name, arg)
	}
	return n, nil
}

func parseSort(args []string) (browser.Event, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, errors.New("sort expects a field and an optional direction")
	}
	by := domain.SortBy(args[0])
	if !by.Valid() {
		return nil, fmt.Errorf("unknown sort field %q", args[0])
	}
	order := domain.SortAsc
	if len(args) == 2 {
		order = domain.SortOrder(strings.ToLower(args[1]))
		if !order.Valid() {
			return nil, fmt.Errorf("unknown sort direction %q", args[1])
		}
	}
	return browser.SetFilter{Patch: urlstate.Patch{}.WithSort(by, order)}, nil
}

func parseFilter(args []string) (browser.Event, error) {
	if len(args) == 0 {
		return nil, errors.New("filter expects key=value pairs")
	}

	var patch urlstate.Patch
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q is not key=value", arg)
		}
		switch key {
		case urlstate.KeyStatus:
			s := domain.Status(value)
			if !s.Valid() {
				return nil, fmt.Errorf("unknown status %q", value)
			}
			patch = patch.WithStatus(s)
		case urlstate.KeyFeatured:
			f := domain.Featured(value)
			if !f.Valid() {
				return nil, fmt.Errorf("unknown featured value %q", value)
			}
			patch = patch.WithFeatured(f)
		case urlstate.KeyLimit:
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("limit must be a positive number, got %q", value)
			}
			patch = patch.WithLimit(n)
		default:
			return nil, fmt.Errorf("unknown filter %q", key)
		}
	}
	return browser.SetFilter{Patch: patch}, nil
}
