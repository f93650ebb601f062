package main

import (
	"github.com/pkg/profile"
	"github.com/rotisserie/eris"
)

func startProfile(kind string) (stop func(), err error) {
	var mode func(*profile.Profile)
	switch kind {
	case "", "none":
		return func() {}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfileAllocs
	default:
		return nil, eris.Errorf("unknown profile %q", kind)
	}
	p := profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}
