// Package driver selects and opens HAL backends.
//
// Backends are named (vulkan, metal, dx12, gles, software, noop) and kept in
// a gpucontext.Registry. The noop and software backends are always present;
// hardware backends appear once their hal package is imported:
//
//	import _ "github.com/gogpu/wgpu/hal/allbackends"
//
//	driver.Default().RegisterHAL()
//	p, err := driver.Open("auto")
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//	dev, err := device.Open(rc, p)
package driver
