package server

import "github.com/gocraftd/gocraftd/internal/session"

// commandSender adapts a *session.Session to the command.Sender contract
// so internal/command never needs to import internal/session.
type commandSender struct {
	sess *session.Session
	srv  *Server
}

func (c *commandSender) Reply(text string) { c.srv.sendWrapped(c.sess, text) }
func (c *commandSender) Name() string { return c.sess.Name }
func (c *commandSender) IsOperator() bool { return c.sess.IsOperator() }
