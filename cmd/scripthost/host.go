package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/plus3/scripthost/internal/config"
	"github.com/plus3/scripthost/internal/slotdb"
	"github.com/plus3/scripthost/scene"
	"github.com/plus3/scripthost/script"
	"github.com/plus3/scripthost/script/luascript"
	"github.com/plus3/scripthost/script/tengoscript"
)

//go:embed assets
var assets embed.FS

const demoScene = "demo.yaml"

// Host owns the scene, the controller and the script programs loaded for
// them.
type Host struct {
	logger     *slog.Logger
	doc        *scene.Document
	scene      *scene.Scene
	sources    fs.FS
	sourceDir  string
	registry   *script.Registry
	store      *slotdb.Store
	controller *script.Controller
	programs   map[string]script.Factory
}

// NewHost loads the configured scene, or the built-in demo scene, and
// creates its objects. Scripts are attached by Spawn.
func NewHost(cfg config.Config, logger *slog.Logger, clock script.Clock) (*Host, error) {
	h := &Host{
		logger:   logger,
		scene:    scene.New(),
		registry: script.NewRegistry(),
		programs: make(map[string]script.Factory),
	}
	registerBehaviours(h.registry)

	var err error
	if cfg.ScenePath == "" {
		h.sources, err = fs.Sub(assets, "assets")
		if err != nil {
			return nil, err
		}
		data, err := fs.ReadFile(h.sources, demoScene)
		if err != nil {
			return nil, err
		}
		if h.doc, err = scene.Parse(data); err != nil {
			return nil, err
		}
	} else {
		if h.doc, err = scene.LoadFile(cfg.ScenePath); err != nil {
			return nil, err
		}
		h.sourceDir = cfg.ScriptDir
		h.sources = os.DirFS(cfg.ScriptDir)
	}

	slots, err := h.doc.Build(h.scene)
	if err != nil {
		return nil, err
	}

	var source script.SlotSource = slots
	if cfg.SlotDB != "" {
		h.store, err = slotdb.Open(cfg.SlotDB, h.scene, slots)
		if err != nil {
			return nil, err
		}
		source = h.store
	}

	h.controller = script.NewController(
		script.WithClock(clock),
		script.WithLogger(logger),
		script.WithObjects(h.scene),
		script.WithTransforms(h.scene),
		script.WithSlotSource(source),
		script.WithFixedStep(cfg.FixedStep),
	)
	return h, nil
}

func (h *Host) Controller() *script.Controller { return h.controller }

func (h *Host) Scene() *scene.Scene { return h.scene }

// SourceDir is the directory script sources are read from, or "" when they
// are embedded.
func (h *Host) SourceDir() string { return h.sourceDir }

// Spawn attaches every script of the scene. Scripts of inactive objects and
// scripts marked disabled are awake but not enabled. Failures are collected
// and do not stop the remaining scripts.
func (h *Host) Spawn() error {
	var errs []error
	for _, obj := range h.doc.Objects {
		id, ok := h.scene.LookupObject(obj.Name)
		if !ok {
			errs = append(errs, fmt.Errorf("object %q: %w", obj.Name, scene.ErrUnknownObject))
			continue
		}
		for _, sc := range obj.Scripts {
			if err := h.spawn(id, sc, !sc.Disabled); err != nil {
				errs = append(errs, fmt.Errorf("object %q script %q: %w", obj.Name, sc.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (h *Host) spawn(id script.ObjectID, sc scene.ScriptSpec, enable bool) error {
	b, err := h.behaviour(sc)
	if err != nil {
		return err
	}
	inst, err := h.controller.Register(id, sc.Name, b)
	if err != nil {
		return err
	}
	if err := h.controller.Attach(inst); err != nil {
		return err
	}
	if !enable || !h.scene.Active(id) {
		return nil
	}
	return h.controller.Enable(inst)
}

func (h *Host) behaviour(sc scene.ScriptSpec) (script.Behaviour, error) {
	if sc.Type != "" {
		return h.registry.New(sc.Type)
	}
	factory, err := h.program(sc.Source)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// program compiles source once and caches its factory.
func (h *Host) program(source string) (script.Factory, error) {
	source = path.Clean(source)
	if f, ok := h.programs[source]; ok {
		return f, nil
	}
	data, err := fs.ReadFile(h.sources, source)
	if err != nil {
		return nil, err
	}

	var factory script.Factory
	switch ext := path.Ext(source); ext {
	case tengoscript.Extension:
		p, err := tengoscript.Compile(source, data)
		if err != nil {
			return nil, err
		}
		factory = p.Factory()
	case luascript.Extension:
		p, err := luascript.Compile(source, data)
		if err != nil {
			return nil, err
		}
		factory = p.Factory()
	default:
		return nil, fmt.Errorf("no script backend for %q files", ext)
	}
	h.programs[source] = factory
	return factory, nil
}

// SetActive flips the active flag of the named object and enables or
// disables its scripts to match. Scripts marked disabled in the scene stay
// disabled.
func (h *Host) SetActive(name string, active bool) error {
	id, ok := h.scene.LookupObject(name)
	if !ok {
		return fmt.Errorf("set active %q: %w", name, scene.ErrUnknownObject)
	}
	if err := h.scene.SetActive(id, active); err != nil {
		return err
	}
	spec, _ := h.doc.Object(name)

	var errs []error
	for _, inst := range h.controller.ObjectInstances(id) {
		switch {
		case !active && inst.State().Live():
			errs = append(errs, h.controller.Disable(inst))
		case active && !inst.State().Live() && !scriptDisabled(spec, inst.Name()):
			errs = append(errs, h.controller.Enable(inst))
		}
	}
	return errors.Join(errs...)
}

func scriptDisabled(obj scene.ObjectSpec, name string) bool {
	for _, sc := range obj.Scripts {
		if sc.Name == name {
			return sc.Disabled
		}
	}
	return false
}

// Reload recompiles the script at file and replaces every instance running
// it. Instances keep their enabled state. A script that fails to compile
// leaves the running instances untouched.
func (h *Host) Reload(file string) {
	source, ok := h.sourceOf(file)
	if !ok {
		return
	}
	old, cached := h.programs[source]
	delete(h.programs, source)
	if _, err := h.program(source); err != nil {
		h.logger.Error("scripthost: reload failed", "source", source, "error", err)
		if cached {
			h.programs[source] = old
		}
		return
	}

	n := 0
	for _, obj := range h.doc.Objects {
		id, ok := h.scene.LookupObject(obj.Name)
		if !ok {
			continue
		}
		for _, sc := range obj.Scripts {
			if sc.Source == "" || path.Clean(sc.Source) != source {
				continue
			}
			enable := !sc.Disabled
			if inst, ok := h.controller.Find(id, sc.Name); ok {
				enable = inst.State() != script.Disabled
				if err := h.controller.Destroy(inst); err != nil {
					h.logger.Warn("scripthost: destroy before reload failed", "object", obj.Name, "script", sc.Name, "error", err)
				}
			}
			if err := h.spawn(id, sc, enable); err != nil {
				h.logger.Error("scripthost: respawn failed", "object", obj.Name, "script", sc.Name, "error", err)
				continue
			}
			n++
		}
	}
	h.logger.Info("scripthost: reloaded", "source", source, "instances", n)
}

// sourceOf maps a changed file to the scene-relative source path.
func (h *Host) sourceOf(file string) (string, bool) {
	if h.sourceDir == "" {
		return "", false
	}
	dir, err := filepath.Abs(h.sourceDir)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Close destroys every instance, which saves slot values when a store is
// configured, and then closes the store.
func (h *Host) Close() error {
	h.controller.DestroyAll()
	if h.store != nil {
		return h.store.Close()
	}
	return nil
}
