package mqttsn

import (
	"time"
)

// keepAliveExpired reports whether an active client has been silent for
// longer than its keep-alive period. A zero keep-alive never expires.
func keepAliveExpired(rec *ClientRecord, now time.Time) bool {
	return rec.KeepAlive > 0 && now.Sub(rec.LastActivity) > rec.KeepAlive
}

// sleepExpired reports whether an asleep client has overslept.
func sleepExpired(rec *ClientRecord, now time.Time) bool {
	return now.Sub(rec.LastActivity) > rec.SleepDuration
}

// sweepActive solicits a PINGREQ from every active client past its
// keep-alive period. A client that still has not answered one keep-alive
// period after the solicitation is marked lost.
func (g *Gateway) sweepActive(now time.Time) {
	for _, rec := range g.clients {
		if rec.State != ClientActive || !keepAliveExpired(rec, now) {
			continue
		}

		if !rec.PingSent {
			g.send(rec.Addr, &PingreqPacket{})
			rec.PingSent = true
			rec.PingSentAt = now
			continue
		}

		if now.Sub(rec.PingSentAt) > rec.KeepAlive {
			g.logger.Info("client keep-alive expired", LogFields{
				LogFieldPeer:     rec.Addr.String(),
				LogFieldClientID: rec.ClientID,
			})
			g.setState(rec, ClientLost)
		}
	}
}

// sweepAsleep marks lost every asleep client past its sleep duration.
func (g *Gateway) sweepAsleep(now time.Time) {
	for _, rec := range g.clients {
		if rec.State == ClientAsleep && sleepExpired(rec, now) {
			g.logger.Info("client sleep expired", LogFields{
				LogFieldPeer:     rec.Addr.String(),
				LogFieldClientID: rec.ClientID,
				LogFieldDuration: rec.SleepDuration.String(),
			})
			g.setState(rec, ClientLost)
		}
	}
}

// sweepInactive purges lost and disconnected clients that have been silent
// for longer than the maximum inactivity time, along with their
// subscriptions, publisher record and pending deliveries.
func (g *Gateway) sweepInactive(now time.Time) {
	var purged int
	for peer, rec := range g.clients {
		if rec.State != ClientLost && rec.State != ClientDisconnected {
			continue
		}
		if now.Sub(rec.LastActivity) <= g.config.maxInactivity {
			continue
		}

		delete(g.clients, peer)
		g.subscriptions.UnsubscribeAll(peer)
		g.wills.Remove(peer)
		g.pending.RemovePeer(peer)
		purged++

		g.logger.Debug("client purged", LogFields{
			LogFieldPeer:     peer.String(),
			LogFieldClientID: rec.ClientID,
		})
	}

	if purged > 0 {
		g.updateClientGauges()
		g.metrics.gauge(MetricSubscriptions, g.subscriptions.Len())
		g.metrics.gauge(MetricPendingRequests, g.pending.Len())
	}
}
