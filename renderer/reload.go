package renderer

import "github.com/gogpu/gfxcore/device"

// ReloadShader schedules new sources for the registered shader name. The
// stages that changed are recompiled at the start of the next frame. Empty
// stages in src are left as they are. ReloadShader is safe to call from
// any goroutine, typically a file watcher.
func (r *Renderer) ReloadShader(name string, src device.ShaderSource) {
	r.mu.Lock()
	r.reloads[name] = src
	r.mu.Unlock()
}

func (r *Renderer) applyReloads() {
	r.mu.Lock()
	if len(r.reloads) == 0 {
		r.mu.Unlock()
		return
	}
	pending := r.reloads
	r.reloads = make(map[string]device.ShaderSource)
	r.mu.Unlock()

	for name, src := range pending {
		sh := r.dev.FindShader(name)
		if sh == nil {
			r.log.Warn("reload of unknown shader", "shader", name)
			continue
		}
		changed := false
		for _, st := range []device.Stage{device.StageVertex, device.StageFragment, device.StageGeometry} {
			if text := src.Stage(st); text != "" && r.dev.UpdateShaderSource(sh, st, text) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if r.dev.RecompileShader(sh) {
			r.log.Info("shader reloaded", "shader", name)
		} else {
			r.log.Error("shader reload failed", "shader", name, "error", sh.Err())
		}
	}
}
