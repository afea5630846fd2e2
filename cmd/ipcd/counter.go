package main

import (
	"log/slog"
	"sync"
)

// Counter is the object exposed by serve.
type Counter struct {
	mu sync.Mutex
	n  int
}

func (c *Counter) Increment(_ struct{}, reply *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	*reply = c.n
	return nil
}

func (c *Counter) Value(_ struct{}, reply *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	*reply = c.n
	return nil
}

func (c *Counter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Info("Counter closed", "value", c.n)
	return nil
}
