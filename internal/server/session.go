package server

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/tholin/craftd/internal/entity"
	"github.com/tholin/craftd/internal/network"
	"github.com/tholin/craftd/internal/player"
	"github.com/tholin/craftd/internal/proto"
	"github.com/tholin/craftd/internal/world"
)

const (
	nextStateStatus = 1
	nextStateLogin  = 2
)

// handleAccept is the network.Acceptor callback: it runs the connection's
// whole lifecycle (handshake -> status|login -> play) in its own goroutine.
func (s *Server) handleAccept(conn *network.Connection) {
	go s.runConnection(conn)
}

func (s *Server) runConnection(conn *network.Connection) {
	log := s.log.WithConn(conn.ID())
	defer func() {
		s.acceptor.Remove(conn)
		conn.Close()
	}()

	pkt, err := conn.ReadPacket()
	if err != nil {
		log.WithError(err).Debug("handshake read failed")
		return
	}
	hs, ok := pkt.(*proto.Handshake)
	if !ok {
		log.Warn("first packet was not a handshake")
		return
	}

	if hs.ProtocolVersion != proto.ProtocolVersion {
		log.WithField("client_protocol", hs.ProtocolVersion).Warn("protocol version mismatch, closing")
		return
	}

	switch hs.NextState {
	case nextStateStatus:
		conn.SetPhase(proto.Status)
		s.runStatus(conn, log)
	case nextStateLogin:
		conn.SetPhase(proto.Login)
		s.runLogin(conn, log)
	default:
		log.WithField("next_state", hs.NextState).Warn("unknown handshake next state")
	}
}

func (s *Server) runStatus(conn *network.Connection, log *logrus.Entry) {
	for {
		pkt, err := conn.ReadPacket()
		if err != nil {
			var unknown *proto.ErrUnknownPacket
			if errors.As(err, &unknown) {
				continue
			}
			return
		}
		switch p := pkt.(type) {
		case proto.StatusRequest:
			body, err := proto.BuildStatusJSON(proto.MinecraftVersionName, s.cfg.Server.MaxPlayers, s.players.Len(), s.cfg.Server.MOTD)
			if err != nil {
				log.WithError(err).Warn("building status json")
				return
			}
			if err := conn.Send(&proto.StatusResponse{JSON: body}); err != nil {
				return
			}
		case *proto.PingRequest:
			if err := conn.Send(&proto.PingResponse{Payload: p.Payload}); err != nil {
				return
			}
			return
		default:
			// unexpected packet in STATUS; ignore per spec.md §4.2 and keep
			// reading rather than closing.
		}
	}
}

func (s *Server) runLogin(conn *network.Connection, log *logrus.Entry) {
	pkt, err := conn.ReadPacket()
	if err != nil {
		log.WithError(err).Debug("login start read failed")
		return
	}
	ls, ok := pkt.(*proto.LoginStart)
	if !ok {
		log.Warn("expected login start")
		return
	}

	if !player.ValidUsername(ls.Name) {
		log.WithField("username", ls.Name).Warn("rejected invalid username")
		return
	}

	uuid := ls.UUID
	if !s.cfg.Server.OnlineMode {
		uuid = player.OfflineUUID(ls.Name)
	}

	if err := conn.Send(&proto.LoginSuccess{UUID: uuid, Username: ls.Name}); err != nil {
		return
	}
	conn.SetPhase(proto.Play)

	spawnLoc := player.Location{
		X: float64(s.cfg.World.SpawnX),
		Y: float64(s.cfg.World.SpawnY),
		Z: float64(s.cfg.World.SpawnZ),
	}

	ent := &entity.Entity{Kind: entity.KindLiving, Health: 20, MaxHealth: 20,
		Loc: entity.Location{X: spawnLoc.X, Y: spawnLoc.Y, Z: spawnLoc.Z}}
	entityID, err := s.entities.Spawn(ent)
	if err != nil {
		log.WithError(err).Warn("entity table full")
		return
	}

	p := player.NewPlayer(conn, uuid, ls.Name, entityID, s.cfg.Server.ViewDistance)
	p.Loc = spawnLoc
	p.SpawnLoc = spawnLoc

	if err := s.players.Create(p); err != nil {
		// spec.md §4.7 boundary scenario: a second login racing an already
		// online session (or a full server) is closed before JoinGame, not
		// silently overwritten.
		msg := "server full"
		if errors.Is(err, player.ErrDuplicate) {
			msg = "already online"
		}
		log.WithField("player", p.Username).Info(msg)
		return
	}
	s.mon.EnteredPlay()

	defer func() {
		s.players.Remove(p)
		p.MarkOffline()
		s.mon.LeftPlay()
	}()

	if err := conn.Send(&proto.JoinGame{
		EntityID:           entityID,
		Gamemode:           uint8(p.Gamemode),
		Worlds:             []string{s.cfg.World.Name},
		DimensionType:      "minecraft:overworld",
		DimensionName:      s.cfg.World.Name,
		MaxPlayers:         int32(s.cfg.Server.MaxPlayers),
		ViewDistance:       int32(p.ViewDistance),
		SimulationDistance: int32(s.cfg.Server.SimulationDistance),
	}); err != nil {
		return
	}

	s.sendViewDiff(conn, p, p.Loc.Chunk(), log)

	p.LastTeleportID++
	p.PendingTeleport = true
	if err := conn.Send(&proto.PlayerPositionAndLook{
		X: p.Loc.X, Y: p.Loc.Y, Z: p.Loc.Z,
		Yaw: p.Loc.Yaw, Pitch: p.Loc.Pitch,
		TeleportID: p.LastTeleportID,
	}); err != nil {
		return
	}

	log.WithField("player", p.Username).Info("player joined")
	s.playLoop(conn, p, log)
	log.WithField("player", p.Username).Info("player left")
}

func (s *Server) playLoop(conn *network.Connection, p *player.Player, log *logrus.Entry) {
	for {
		pkt, err := conn.ReadPacket()
		if err != nil {
			var unknown *proto.ErrUnknownPacket
			if errors.As(err, &unknown) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("play read ended")
			}
			return
		}
		p.Touch()

		switch m := pkt.(type) {
		case *proto.TeleportConfirm:
			if m.TeleportID == p.LastTeleportID {
				p.PendingTeleport = false
			}
		case *proto.PlayerPosition:
			if p.PendingTeleport {
				// spec.md §4.7 supplemented behaviour: ignore client-reported
				// position until the pending teleport is confirmed, so a
				// stale position update can't race the server's own move.
				continue
			}
			p.Loc.X, p.Loc.Y, p.Loc.Z = m.X, m.Y, m.Z
			s.sendViewDiff(conn, p, p.Loc.Chunk(), log)
		case *proto.KeepAliveSB:
			conn.ObserveKeepAlive(m.ID)
		}
	}
}

// sendViewDiff announces the new view center, then streams newly-visible
// chunks (nearest first) and finally unloads chunks that fell outside the
// player's view disc, matching spec.md §4.7/§4.8 boundary scenario 5's
// ordering: UpdateViewPosition, then ChunkData, then UnloadChunk.
func (s *Server) sendViewDiff(conn *network.Connection, p *player.Player, center world.ChunkCoord, log *logrus.Entry) {
	toLoad, toUnload := p.ViewDiff(center)
	if len(toLoad) == 0 && len(toUnload) == 0 {
		return
	}

	if err := conn.Send(&proto.UpdateViewPosition{ChunkX: center.X, ChunkZ: center.Z}); err != nil {
		return
	}

	sent := make([]world.ChunkCoord, 0, len(toLoad))
	for _, coord := range toLoad {
		c, result := s.world.Load(coord)
		if result != world.Present {
			// generation kicked off async; the chunk is not recorded as
			// loaded, so the next sendViewDiff call for this player retries it
			continue
		}
		if err := conn.Send(encodeChunkPacket(c)); err != nil {
			return
		}
		sent = append(sent, coord)
	}
	for _, coord := range toUnload {
		if err := conn.Send(&proto.UnloadChunk{ChunkX: coord.X, ChunkZ: coord.Z}); err != nil {
			return
		}
	}
	p.ApplyViewDiff(sent, toUnload)
}
