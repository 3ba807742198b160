package db

const tokenCreateQ = `
INSERT INTO refresh_tokens (user_id, jti, token_hash, status, expires_at, ip, user_agent)
VALUES ($1, $2, $3, 'active', $4, $5, $6)
`

const tokenRotateOutFingerprintQ = `
UPDATE refresh_tokens
SET status = 'rotated', replaced_by = $1, updated_at = now()
WHERE user_id = $2 AND ip = $3 AND user_agent = $4 AND status = 'active'
`

const tokenGetByJTIQ = `
SELECT
	id,
	user_id,
	jti,
	token_hash,
	status,
	replaced_by,
	expires_at,
	ip,
	user_agent,
	created_at,
	updated_at
FROM refresh_tokens
WHERE jti = $1
`

const tokenGetByJTIForUpdateQ = tokenGetByJTIQ + `
FOR UPDATE
`

const tokenGetActiveByFingerprintQ = `
SELECT
	id,
	user_id,
	jti,
	token_hash,
	status,
	replaced_by,
	expires_at,
	ip,
	user_agent,
	created_at,
	updated_at
FROM refresh_tokens
WHERE user_id = $1 AND ip = $2 AND user_agent = $3 AND status = 'active' AND expires_at > now()
ORDER BY created_at DESC
LIMIT 1
`

const tokenRotateQ = `
UPDATE refresh_tokens
SET status = 'rotated', replaced_by = $1, updated_at = now()
WHERE jti = $2 AND status = 'active'
`

const tokenRevokeQ = `
UPDATE refresh_tokens
SET status = 'revoked', updated_at = now()
WHERE jti = $1 AND status = 'active'
`

const tokenExistsQ = `
SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE jti = $1)
`

const tokenRevokeAllQ = `
UPDATE refresh_tokens
SET status = 'revoked', updated_at = now()
WHERE user_id = $1 AND status = 'active'
`

const tokenDeleteStaleQ = `
DELETE FROM refresh_tokens
WHERE (status <> 'active' AND updated_at < $1) OR expires_at < now()
`
