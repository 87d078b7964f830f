package dom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Locator addresses one element: a CSS selector, optionally narrowed to the
// first match whose text contains Text. Menu items on the portal carry no
// stable attributes, only their Arabic labels.
type Locator struct {
	Selector string `json:"selector"`
	Text     string `json:"text,omitempty"`
}

// CSS returns a plain selector locator
func CSS(selector string) Locator {
	return Locator{Selector: selector}
}

// WithText returns a locator matching selector and containing text
func WithText(selector, text string) Locator {
	return Locator{Selector: selector, Text: text}
}

func (l Locator) String() string {
	if l.Text == "" {
		return l.Selector
	}
	return fmt.Sprintf("%s[text*=%q]", l.Selector, l.Text)
}

// Op names one of the commands the page runtime understands
type Op string

const (
	OpClick    Op = "click"
	OpSetValue Op = "set_value"
	OpUpload   Op = "upload"
	OpQuery    Op = "query"
	OpQueryAll Op = "query_all"
	OpDetect   Op = "detect"
)

// Value kinds accepted by set_value
const (
	KindInput    = "input"
	KindTextarea = "textarea"
)

// File is an upload payload. Data is sent base64-encoded.
type File struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Command is the wire form of a page operation. Build it with the
// constructors below rather than by hand.
type Command struct {
	Op          Op        `json:"op"`
	Target      *Locator  `json:"target,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Value       string    `json:"value,omitempty"`
	File        *File     `json:"file,omitempty"`
	URLContains []string  `json:"urlContains,omitempty"`
	Markers     []Locator `json:"markers,omitempty"`
	Limit       int       `json:"limit,omitempty"`
}

// Click clicks the located element
func Click(target Locator) Command {
	return Command{Op: OpClick, Target: &target}
}

// SetValue assigns value to an input or textarea and fires input, change
// and blur
func SetValue(target Locator, kind, value string) Command {
	return Command{Op: OpSetValue, Target: &target, Kind: kind, Value: value}
}

// Upload attaches file to an <input type="file">
func Upload(target Locator, file File) Command {
	return Command{Op: OpUpload, Target: &target, File: &file}
}

// Query describes the first matching element
func Query(target Locator) Command {
	return Command{Op: OpQuery, Target: &target}
}

// QueryAll describes up to limit matching elements
func QueryAll(target Locator, limit int) Command {
	return Command{Op: OpQueryAll, Target: &target, Limit: limit}
}

// Detect is true when the page URL contains any fragment or any marker exists
func Detect(urlContains []string, markers []Locator) Command {
	return Command{Op: OpDetect, URLContains: urlContains, Markers: markers}
}

// Render turns a command into script source for the provider's evaluate
// call. Arguments are embedded as a JSON literal only, so no value can
// terminate a string or inject code.
func Render(cmd Command) (string, error) {
	args, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s command: %w", cmd.Op, err)
	}

	var b strings.Builder
	b.Grow(len(runtime) + len(args) + 3)
	b.WriteString("(")
	b.WriteString(runtime)
	b.WriteString(")(")
	b.Write(args)
	b.WriteString(")")
	return b.String(), nil
}

// Decode recovers the command from a script produced by Render. Fake
// providers and the local provider's diagnostics use it.
func Decode(code string) (Command, error) {
	prefix := "(" + runtime + ")("
	if !strings.HasPrefix(code, prefix) || !strings.HasSuffix(code, ")") {
		return Command{}, fmt.Errorf("script was not produced by Render")
	}

	var cmd Command
	args := code[len(prefix) : len(code)-1]
	if err := json.Unmarshal([]byte(args), &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to decode command arguments: %w", err)
	}
	return cmd, nil
}

// runtime is evaluated once per command with the JSON arguments applied.
// Every branch returns a plain object so the provider can serialize it.
const runtime = `function (cmd) {
  function find(loc) {
    var nodes = document.querySelectorAll(loc.selector);
    for (var i = 0; i < nodes.length; i++) {
      if (!loc.text || (nodes[i].textContent || '').indexOf(loc.text) !== -1) {
        return nodes[i];
      }
    }
    return null;
  }
  function describe(el) {
    return {
      tag: el.tagName.toLowerCase(),
      text: (el.textContent || '').trim().slice(0, 200),
      value: typeof el.value === 'string' ? el.value : '',
      visible: !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length)
    };
  }
  function fire(el, name) {
    el.dispatchEvent(new Event(name, { bubbles: true }));
  }
  var ops = {
    click: function () {
      var el = find(cmd.target);
      if (!el) { return { ok: false, error: 'not_found' }; }
      el.click();
      return { ok: true };
    },
    set_value: function () {
      var el = find(cmd.target);
      if (!el) { return { ok: false, error: 'not_found' }; }
      var isArea = el.tagName === 'TEXTAREA';
      if (cmd.kind === 'textarea' && !isArea) { return { ok: false, error: 'not_found' }; }
      if (el.focus) { el.focus(); }
      var proto = isArea ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
      var desc = Object.getOwnPropertyDescriptor(proto, 'value');
      if (desc && desc.set && (el instanceof HTMLInputElement || isArea)) {
        desc.set.call(el, cmd.value || '');
      } else {
        el.value = cmd.value || '';
      }
      fire(el, 'input');
      fire(el, 'change');
      fire(el, 'blur');
      return { ok: true };
    },
    upload: function () {
      var el = find(cmd.target);
      if (!el || el.type !== 'file') { return { ok: false, error: 'not_found' }; }
      var bin = atob(cmd.file.data || '');
      var bytes = new Uint8Array(bin.length);
      for (var i = 0; i < bin.length; i++) { bytes[i] = bin.charCodeAt(i); }
      var file = new File([bytes], cmd.file.name, { type: cmd.file.mimeType });
      var dt = new DataTransfer();
      dt.items.add(file);
      el.files = dt.files;
      fire(el, 'change');
      return { ok: true };
    },
    query: function () {
      var el = find(cmd.target);
      return { ok: true, found: !!el, element: el ? describe(el) : null };
    },
    query_all: function () {
      var nodes = document.querySelectorAll(cmd.target.selector);
      var out = [];
      for (var i = 0; i < nodes.length; i++) {
        if (cmd.target.text && (nodes[i].textContent || '').indexOf(cmd.target.text) === -1) { continue; }
        out.push(describe(nodes[i]));
        if (cmd.limit && out.length >= cmd.limit) { break; }
      }
      return { ok: true, found: out.length > 0, elements: out };
    },
    detect: function () {
      var href = String(window.location.href);
      var urls = cmd.urlContains || [];
      for (var i = 0; i < urls.length; i++) {
        if (href.indexOf(urls[i]) !== -1) { return { ok: true, found: true }; }
      }
      var markers = cmd.markers || [];
      for (var j = 0; j < markers.length; j++) {
        if (find(markers[j])) { return { ok: true, found: true }; }
      }
      return { ok: true, found: false };
    }
  };
  var op = ops[cmd.op];
  if (!op) { return { ok: false, error: 'unknown_op' }; }
  try {
    return op();
  } catch (e) {
    return { ok: false, error: String(e && e.message ? e.message : e) };
  }
}`
