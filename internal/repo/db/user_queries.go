package db

const userGetByIDQ = `
SELECT
	u.id,
	u.name,
	u.email,
	u.avatar,
	u.is_active,
	u.is_email_verified,
	u.created_at,
	u.updated_at
FROM users u
WHERE u.id = $1
`

const userGetByEmailQ = `
SELECT
    u.id,
    u.name,
    u.email,
    u.password,
    u.avatar,
	u.is_active,
	u.is_email_verified,
    u.created_at,
    u.updated_at
FROM users u
WHERE u.email = $1
`

const userCreateQ = `
INSERT INTO users (name, password, email, avatar, is_active, is_email_verified)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`

const userUpdateQ = `
UPDATE users
SET name = $1, email = $2, avatar = $3, is_active = $4, is_email_verified = $5, updated_at = now()
WHERE id = $6
`

const userDeleteQ = `
DELETE FROM users
WHERE id = $1
`
