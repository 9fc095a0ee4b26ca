//go:build !unix

package main

func notifyRescan(func()) func() { return func() {} }
