package match

import "math"

// Play field is the unit square. All sizes are fractions of it.
const (
	paddleWidth  = 1.0 / 25
	paddleHeight = 1.0 / 4
	ballRadius   = 1.0 / 40

	player1X = 0.05
	player2X = 0.95

	// Strike offset bound: how steep a paddle hit can deflect the ball.
	maxStrikeOffset = 0.3
)

type rect struct {
	x, y          float64
	width, height float64
}

func rectsCollide(a, b rect) bool {
	return a.x < b.x+b.width &&
		a.x+a.width > b.x &&
		a.y < b.y+b.height &&
		a.y+a.height > b.y
}

// step advances the simulation by delta milliseconds of wall time and
// returns the resulting snapshot plus whether the session just finished.
// Delta varies tick to tick; the ball covers speed*delta regardless of
// scheduling jitter.
func (s *Session) step(delta float64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return s.snapshotLocked(), s.state == StateFinished
	}

	s.advanceBall(delta)
	s.checkWallsAndGoals()
	s.checkPaddleCollision()
	s.checkWinCondition()

	return s.snapshotLocked(), s.state == StateFinished
}

func (s *Session) advanceBall(delta float64) {
	length := math.Hypot(s.ballDirection.X, s.ballDirection.Y)
	if length == 0 {
		return
	}
	distance := s.ballSpeed * delta
	s.ballPosition.X += s.ballDirection.X / length * distance
	s.ballPosition.Y += s.ballDirection.Y / length * distance
}

// checkWallsAndGoals reflects the ball off the horizontal walls and
// scores goals when it exits either end, resetting the ball to center.
func (s *Session) checkWallsAndGoals() {
	if s.ballPosition.Y < 0 {
		s.ballPosition.Y = 0
		s.ballDirection.Y = -s.ballDirection.Y
	}
	if s.ballPosition.Y > 1 {
		s.ballPosition.Y = 1
		s.ballDirection.Y = -s.ballDirection.Y
	}
	if s.ballPosition.X < 0 {
		s.player2.score++
		s.resetBall()
	}
	if s.ballPosition.X > 1 {
		s.player1.score++
		s.resetBall()
	}
}

func (s *Session) checkPaddleCollision() {
	ball := rect{
		x:      s.ballPosition.X - ballRadius,
		y:      s.ballPosition.Y - ballRadius,
		width:  ballRadius * 2,
		height: ballRadius * 2,
	}
	paddle1 := paddleRect(s.player1.position)
	paddle2 := paddleRect(s.player2.position)

	if rectsCollide(ball, paddle1) {
		s.ballDirection.X = -s.ballDirection.X
		s.ballDirection.Y = strikeOffset(s.player1.position.Y, s.ballPosition.Y)
		// Flush against the paddle's inner face so the next tick cannot
		// re-trigger the same collision.
		s.ballPosition.X = paddle1.x + paddleWidth + ballRadius
	}
	if rectsCollide(ball, paddle2) {
		s.ballDirection.X = -s.ballDirection.X
		s.ballDirection.Y = strikeOffset(s.player2.position.Y, s.ballPosition.Y)
		s.ballPosition.X = paddle2.x - ballRadius
	}
}

func paddleRect(center Vec) rect {
	return rect{
		x:      center.X - paddleWidth/2,
		y:      center.Y - paddleHeight/2,
		width:  paddleWidth,
		height: paddleHeight,
	}
}

// strikeOffset maps where the ball hit the paddle to a vertical
// deflection, clamped so edge hits stay playable.
func strikeOffset(paddleY, ballY float64) float64 {
	relative := (ballY - paddleY) / (paddleHeight / 2)
	return math.Min(math.Max(relative, -maxStrikeOffset), maxStrikeOffset)
}

func (s *Session) checkWinCondition() {
	if s.player1.score >= s.winningScore {
		s.result = 1
	} else if s.player2.score >= s.winningScore {
		s.result = 2
	} else {
		return
	}
	s.state = StateFinished
	s.finishedAt = nowFunc()
}
